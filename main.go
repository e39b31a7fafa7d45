package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	appointmentx "github.com/tanpawarit/voice-appointment-agent/agent/appointment"
	catalogx "github.com/tanpawarit/voice-appointment-agent/agent/catalog"
	contractx "github.com/tanpawarit/voice-appointment-agent/agent/contract"
	conversationx "github.com/tanpawarit/voice-appointment-agent/agent/conversation"
	"github.com/tanpawarit/voice-appointment-agent/agent/llm"
	"github.com/tanpawarit/voice-appointment-agent/agent/notify"
	promptx "github.com/tanpawarit/voice-appointment-agent/agent/prompt"
	statex "github.com/tanpawarit/voice-appointment-agent/agent/state"
	summaryx "github.com/tanpawarit/voice-appointment-agent/agent/summary"
	toolx "github.com/tanpawarit/voice-appointment-agent/agent/tool"
	configx "github.com/tanpawarit/voice-appointment-agent/pkg/config"
	_ "github.com/tanpawarit/voice-appointment-agent/pkg/logger/autoload"
	openrouterx "github.com/tanpawarit/voice-appointment-agent/pkg/openrouter"
	postgresx "github.com/tanpawarit/voice-appointment-agent/pkg/postgres"
	qstashx "github.com/tanpawarit/voice-appointment-agent/pkg/qstash"
)

type AppConfig struct {
	SlotCatalogFile string `split_words:"true"`
	PhoneRegion     string `split_words:"true"`
	ConversationID  string `split_words:"true" default:"console"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatal().Err(err).Msg("voice appointment agent stopped")
	}
}

func run(ctx context.Context) error {
	appCfg := configx.MustNew[AppConfig]("APP")
	prompts := promptx.LoadPromptSet()

	catalog := catalogx.Default()
	if path := strings.TrimSpace(appCfg.SlotCatalogFile); path != "" {
		loaded, err := catalogx.Load(path)
		if err != nil {
			return err
		}
		catalog = loaded
	}

	db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	store, summaries, err := newStores(ctx, db)
	if err != nil {
		return err
	}

	journal, err := newJournal()
	if err != nil {
		return err
	}

	toolboxOpts := []toolx.ToolboxOption{toolx.WithPhoneRegion(appCfg.PhoneRegion)}
	publisher, err := newPublisher()
	if err != nil {
		return err
	}
	if publisher != nil {
		toolboxOpts = append(toolboxOpts, toolx.WithEventPublisher(publisher))
	}

	toolbox, err := toolx.NewToolbox(store, toolboxOpts...)
	if err != nil {
		return err
	}
	dispatcher, err := toolx.NewDispatcher(toolbox.Handlers(), toolx.WithJournal(journal))
	if err != nil {
		return err
	}

	llmCfg := configx.MustNew[llm.Config]("OPENROUTER")
	if err := llmCfg.Validate(); err != nil {
		return err
	}
	convCfg := llmCfg.Conversation()
	chatModel, err := openrouterx.NewToolModel(ctx, &convCfg, toolx.Infos())
	if err != nil {
		return err
	}

	managerOpts := []conversationx.ManagerOption{
		conversationx.WithChatModel(chatModel, prompts.Assistant),
		conversationx.WithJournal(journal),
	}
	summarizer, err := newSummarizer(*llmCfg, prompts.Summary)
	if err != nil {
		return err
	}
	if summarizer != nil {
		managerOpts = append(managerOpts, conversationx.WithSummary(summarizer, summaries))
	}

	manager, err := conversationx.NewManager(ctx, catalog, dispatcher, managerOpts...)
	if err != nil {
		return err
	}

	return converse(ctx, manager, appCfg.ConversationID)
}

/* -------------------------------- wiring -------------------------------- */

// openDatabase returns nil when no POSTGRES_DSN is configured.
func openDatabase(ctx context.Context) (*bun.DB, error) {
	pgCfg := configx.MustNew[postgresx.Config]("POSTGRES")
	if strings.TrimSpace(pgCfg.DSN) == "" {
		log.Warn().Msg("POSTGRES_DSN not set, appointments are kept in memory")
		return nil, nil
	}
	return postgresx.Open(ctx, *pgCfg)
}

func newStores(ctx context.Context, db *bun.DB) (appointmentx.Store, contractx.SummaryStore, error) {
	if db == nil {
		return appointmentx.NewMemoryStore(), summaryx.NewMemoryStore(), nil
	}

	appointments, err := appointmentx.NewPostgresStore(db)
	if err != nil {
		return nil, nil, err
	}
	if err := appointments.Migrate(ctx); err != nil {
		return nil, nil, err
	}

	summaries, err := summaryx.NewPostgresStore(db)
	if err != nil {
		return nil, nil, err
	}
	if err := summaries.Migrate(ctx); err != nil {
		return nil, nil, err
	}
	return appointments, summaries, nil
}

func newJournal() (statex.Journal, error) {
	cfg := configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS")
	if !cfg.Enabled {
		return statex.NewMemoryJournal(), nil
	}
	return statex.NewUpstashJournal(*cfg)
}

func newPublisher() (contractx.EventPublisher, error) {
	cfg := configx.MustNew[qstashx.Config]("QSTASH")
	if !cfg.Enabled {
		return nil, nil
	}
	client, err := qstashx.NewClient(*cfg)
	if err != nil {
		return nil, err
	}
	return notify.NewQStashPublisher(client, cfg.Topic)
}

func newSummarizer(llmCfg llm.Config, systemPrompt string) (contractx.Summarizer, error) {
	cfg := configx.MustNew[summaryx.Config]("SUMMARY")
	if !cfg.Enabled {
		return nil, nil
	}
	orCfg := llmCfg.Summary()
	client := openrouterx.NewClient(orCfg)
	if client == nil {
		return nil, errors.New("failed to initialize openrouter client for summaries")
	}
	return summaryx.NewOpenAISummarizer(client, orCfg.Model, systemPrompt, *cfg)
}

/* ------------------------------- console -------------------------------- */

// converse runs one conversation over stdin/stdout until the caller ends it,
// stdin closes or the process is interrupted.
func converse(ctx context.Context, manager *conversationx.Manager, roomID string) error {
	conv, err := manager.Open(roomID)
	if err != nil {
		return err
	}
	defer func() {
		if err := manager.Close(context.Background(), roomID); err != nil {
			log.Warn().Err(err).Str("conversation_id", roomID).Msg("close conversation failed")
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	fmt.Print("> ")
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				fmt.Print("> ")
				continue
			}

			reply, err := conv.Reply(ctx, line)
			switch {
			case errors.Is(err, conversationx.ErrConversationEnded):
				return nil
			case err != nil:
				log.Error().Err(err).Str("conversation_id", roomID).Msg("turn failed")
				fmt.Println("Sorry, something went wrong. Please try again.")
			default:
				fmt.Println(reply)
			}

			if conv.Ended() {
				return nil
			}
			fmt.Print("> ")
		}
	}
}
