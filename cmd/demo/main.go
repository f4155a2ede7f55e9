// Demo run of the conversation engine against in-memory stores and the
// simulated AI adapter. No Postgres, Redis or network required:
//
//	go run ./cmd/demo
package main

import (
	"context"
	"fmt"
	"time"

	"support-widget-engine/internal/application"
	"support-widget-engine/internal/config"
	"support-widget-engine/internal/domain/model"
	"support-widget-engine/internal/domain/ports/adapter"
	aiAdapters "support-widget-engine/internal/infra/adapters/ai"
	"support-widget-engine/internal/infra/adapters/handoff"
	"support-widget-engine/internal/infra/adapters/identity"
	"support-widget-engine/internal/infra/logging"
	"support-widget-engine/internal/infra/notify"
	"support-widget-engine/internal/infra/worker"
	"support-widget-engine/internal/usecase"
)

const profileID = "demo-profile"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := logging.New(config.LogConfig{Level: "info", Format: "console"}, true)
	hub := notify.NewHub()

	quotaUC := usecase.NewQuotaUseCase(model.QuotaConfig{
		DailyEnabled:     true,
		SessionEnabled:   true,
		DailyLimit:       20,
		SessionLimit:     6,
		WarningThreshold: 2,
	}, newMemQuotaRepo(), hub, logger)
	spamUC := usecase.NewSpamGuardUseCase(500*time.Millisecond, hub, logger)
	opsUC := usecase.NewOperationCoordinator(usecase.OpsConfig{}, hub, logger)
	sessionUC := usecase.NewSessionUseCase(usecase.WidgetConfig{
		AutoOpenWithMessages: true,
		WelcomeMessage:       "Hi! How can we help you today?",
	}, newMemSessionRepo(), nil, logger)
	lifecycleUC := usecase.NewLifecycleUseCase(usecase.LifecycleConfig{
		IdleTimeout:        10 * time.Minute,
		MaxSessionDuration: time.Hour,
		HandoffTimeout:     2 * time.Minute,
	}, sessionUC, quotaUC, spamUC, handoff.NewDevGateway(), identity.NewOpenService(), hub, logger)
	feedbackUC := usecase.NewFeedbackUseCase(sessionUC, newMemFeedbackRepo(), logger)

	pool := worker.NewPool(2, logger)
	pool.Start(ctx)
	defer pool.Stop()

	facade := application.NewWidgetFacade(application.FacadeDeps{
		Sessions:  sessionUC,
		Lifecycle: lifecycleUC,
		Quota:     quotaUC,
		Spam:      spamUC,
		Ops:       opsUC,
		Feedback:  feedbackUC,
		AI:        aiAdapters.NewSimulatedAdapter(200*time.Millisecond, 600*time.Millisecond),
		Identity:  identity.NewOpenService(),
		Notifier:  hub,
		Notices:   hub,
		Runner:    pool,
	}, "simulated", "Hi! How can we help you today?", 30, logger)

	fmt.Println("--- sending messages ---")
	for _, text := range []string{
		"Hello, my invoice looks wrong.",
		"It charged me twice this month.",
	} {
		if _, err := facade.SendMessage(ctx, profileID, text); err != nil {
			fmt.Printf("send rejected: %v\n", err)
		}
		// respect the spam cooldown between sends
		time.Sleep(700 * time.Millisecond)
	}

	// wait for async replies to land
	time.Sleep(1500 * time.Millisecond)
	printState(ctx, facade)

	fmt.Println("--- escalating to a human ---")
	chatID, err := facade.RequestHuman(ctx, profileID, "billing dispute", adapter.HandoffContext{PageURL: "https://example.com/billing"})
	if err != nil {
		fmt.Printf("handoff failed: %v\n", err)
	} else {
		fmt.Printf("escalated, chat id %s\n", chatID)
	}
	_ = facade.AgentAccepted(ctx, profileID)

	fmt.Println("--- ending conversation with satisfaction note ---")
	if err := facade.EndConversation(ctx, profileID, &application.SatisfactionInput{
		Kind:    model.FeedbackPositive,
		Comment: "sorted quickly",
	}); err != nil {
		fmt.Printf("end failed: %v\n", err)
	}
	printState(ctx, facade)
}

func printState(ctx context.Context, facade *application.WidgetFacade) {
	st, err := facade.GetState(ctx, profileID)
	if err != nil {
		fmt.Printf("state error: %v\n", err)
		return
	}
	if st.Session == nil {
		fmt.Println("no session")
		return
	}
	fmt.Printf("session %s status=%s\n", st.Session.ID, st.Session.Status)
	for _, m := range st.Session.Messages {
		fmt.Printf("  [%s] %s\n", m.Type, m.Content)
	}
	for _, n := range st.Notices {
		fmt.Printf("  notice(%s): %s\n", n.Kind, n.Text)
	}
}
