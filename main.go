package main

import (
	"context"
	"fmt"
	"os"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/guardbot/guardbot/internal/adapters"
	"github.com/guardbot/guardbot/internal/adapters/llm/gemini"
	"github.com/guardbot/guardbot/internal/adapters/llm/openai"
	"github.com/guardbot/guardbot/internal/bot"
	"github.com/guardbot/guardbot/internal/config"
	"github.com/guardbot/guardbot/internal/db"
	"github.com/guardbot/guardbot/internal/db/sqlite"
	"github.com/guardbot/guardbot/internal/handlers/admin"
	"github.com/guardbot/guardbot/internal/handlers/chat"
	"github.com/guardbot/guardbot/internal/handlers/moderation"
	"github.com/guardbot/guardbot/internal/i18n"
	"github.com/guardbot/guardbot/internal/infra"
	"github.com/guardbot/guardbot/internal/lifecycle"
	"github.com/guardbot/guardbot/internal/observability"
	"github.com/guardbot/guardbot/resources"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatalln("cant load config")
	}
	log.SetFormatter(&config.GbFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.Level(cfg.LogLevel))

	if err := observability.Init(); err != nil {
		log.WithError(err).Fatalln("cant initialize observability")
	}

	infra.GoRecoverable(-1, "process_updates", func() {
		ctx, cancelFunc := context.WithCancel(context.Background())
		defer cancelFunc()

		botAPI, err := api.NewBotAPI(cfg.TelegramAPIToken)
		if err != nil {
			log.WithError(err).Errorln("cant initialize bot api")
			time.Sleep(1 * time.Second)
			log.Fatalln("exiting")
		}
		if log.Level(cfg.LogLevel) == log.TraceLevel {
			botAPI.Debug = true
		}
		defer botAPI.StopReceivingUpdates()

		dbClient, err := sqlite.NewSQLiteClient(ctx, infra.GetWorkDir(cfg.DotPath), "bot.db")
		if err != nil {
			log.WithError(err).Fatalln("cant initialize database")
		}
		defer func() {
			if err := dbClient.Close(); err != nil {
				log.WithError(err).Errorln("cant close database")
			}
		}()

		service := bot.NewService(botAPI, dbClient)
		transport := bot.NewTransport(botAPI)
		lang := cfg.DefaultLanguage

		var llmAPI adapters.LLM
		switch cfg.LLM.Type {
		case "gemini":
			llmAPI = gemini.NewGemini(cfg.LLM.APIKey, cfg.LLM.Model, log.WithField("context", "gemini"))
		default:
			llmAPI = openai.NewOpenAI(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL, log.WithField("context", "openai"))
		}
		oracle := moderation.NewOracle(llmAPI, cfg.Moderation.OracleTimeout)
		if model, err := dbClient.GetKV(ctx, "llm_model"); err != nil {
			log.WithError(err).Warnln("cant restore model choice")
		} else if model != "" {
			oracle.SetModel(model)
		}

		banWords, err := moderation.LoadLexicon(resources.FS, "data/ban_words.txt")
		if err != nil {
			log.WithError(err).Fatalln("cant load ban words")
		}
		checkWords, err := moderation.LoadLexicon(resources.FS, "data/check_words.txt")
		if err != nil {
			log.WithError(err).Fatalln("cant load check words")
		}

		notifier := moderation.NewNotifier(transport, dbClient, cfg.Moderation.NoticeTTL)
		enforcer := moderation.NewEnforcer(transport, dbClient, notifier, lang)
		allowed := chat.NewAllowedChats(dbClient, cfg.Moderation.AllowedChatsTTL)

		pipeline := moderation.NewPipeline(
			moderation.NewReputationGate(dbClient, cfg.Moderation.PermabanDuration()),
			moderation.NewBanWordGate(banWords, cfg.Moderation.PermabanDuration()),
			moderation.NewNewMemberGate(dbClient, oracle, cfg.Moderation.ProbationMessages, cfg.Moderation.PermabanDuration()),
			moderation.NewCheckWordGate(checkWords, oracle, cfg.Moderation.FuzzyMatchPercent, cfg.Moderation.PermabanDuration(),
				func(ctx context.Context, t *moderation.Target) {
					notifier.Notify(ctx, t.ChatID, db.NotifyAuto, courtesyText(t.Username, lang))
				}),
			moderation.NewLinkGate(cfg.Moderation.LinkMuteDuration()),
		)

		runtime := lifecycle.NewRuntime(
			observability.NewServer(cfg.MetricsAddr),
			notifier,
		)
		if err := runtime.Start(ctx); err != nil {
			log.WithError(err).Fatalln("cant start components")
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			if err := runtime.Stop(stopCtx); err != nil {
				log.WithError(err).Errorln("cant stop components")
			}
		}()

		bot.RegisterUpdateHandler("admin", admin.NewAdmin(service, allowed, oracle, cfg.AdminIDs, lang))
		bot.RegisterUpdateHandler("moderator", chat.NewModerator(service, allowed, pipeline, enforcer, oracle, notifier, cfg.Moderation, lang))

		updateConfig := api.NewUpdate(0)
		updateConfig.Timeout = 60
		updateProcessor := bot.NewUpdateProcessor(service, "admin", "moderator")

		updateChan, errorChan := bot.GetUpdatesChans(ctx, botAPI, updateConfig)

		for {
			select {
			case err := <-errorChan:
				log.WithError(err).Fatalln("bot api get updates error")
			case update := <-updateChan:
				if err := updateProcessor.Process(ctx, &update); err != nil {
					log.WithError(err).Errorln("cant process update")
				}
			case <-ctx.Done():
				log.WithError(ctx.Err()).Errorln("no more updates")
				return
			}
		}
	})

	<-infra.MonitorExecutable(context.Background())
	log.Errorln("executable file was modified")
	os.Exit(0)
}

func courtesyText(username, lang string) string {
	return fmt.Sprintf(i18n.Get(moderation.NoticeClean, lang), username)
}
