package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type (
	Config struct {
		TelegramAPIToken string  `env:"TOKEN,required"`
		AdminIDs         []int64 `env:"ADMIN_IDS"`
		DefaultLanguage  string  `env:"LANG,default=ru"`
		LogLevel         int     `env:"LOG_LEVEL,default=4"`
		DotPath          string  `env:"DOT_PATH,default=~/.guardbot"`
		MetricsAddr      string  `env:"METRICS_ADDR,default=:2112"`
		LLM              LLM
		Moderation       Moderation
	}

	LLM struct {
		APIKey  string `env:"LLM_API_KEY,required"`
		Model   string `env:"LLM_API_MODEL,default=gpt-4o-mini"`
		BaseURL string `env:"LLM_API_URL,default=https://api.openai.com/v1"`
		Type    string `env:"LLM_API_TYPE,default=openai"`
	}

	Moderation struct {
		// ProbationMessages is the history count below which a sender is
		// treated as a new member and gets oracle scrutiny.
		ProbationMessages int `env:"MOD_PROBATION_MESSAGES,default=5"`
		FuzzyMatchPercent int `env:"MOD_FUZZY_MATCH_PERCENT,default=80"`
		LinkMuteDays      int `env:"MOD_LINK_MUTE_DAYS,default=3"`
		// PermabanDays is a large finite stand-in for "forever". The value
		// is part of the moderation contract, do not change it casually.
		PermabanDays int `env:"MOD_PERMABAN_DAYS,default=367"`

		OracleTimeout     time.Duration `env:"MOD_ORACLE_TIMEOUT,default=10s"`
		AllowedChatsTTL   time.Duration `env:"MOD_ALLOWED_CHATS_TTL,default=5m"`
		NoticeTTL         time.Duration `env:"MOD_NOTICE_TTL,default=2m"`
	}
)

func (m Moderation) LinkMuteDuration() time.Duration {
	return time.Duration(m.LinkMuteDays) * 24 * time.Hour
}

func (m Moderation) PermabanDuration() time.Duration {
	return time.Duration(m.PermabanDays) * 24 * time.Hour
}

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

func Load() (Config, error) {
	once.Do(func() {
		cfg := &Config{}
		envcfg := envconfig.Config{
			Lookuper: envconfig.PrefixLookuper("GB_", envconfig.OsLookuper()),
			Target:   cfg,
		}
		if err := envconfig.ProcessWith(context.Background(), &envcfg); err != nil {
			globalErr = fmt.Errorf("process env config: %w", err)
			return
		}
		home, err := os.UserHomeDir()
		if err != nil {
			globalErr = fmt.Errorf("get user home directory: %w", err)
			return
		}
		cfg.DotPath = strings.Replace(cfg.DotPath, "~", home, 1)
		log.Traceln("loaded config")
		globalConfig = cfg
	})
	return *globalConfig, globalErr
}

func Get() Config {
	cfg, err := Load()
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load config")
	}
	return cfg
}
