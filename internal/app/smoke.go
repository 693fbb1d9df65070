package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/hitoshi/eventorg/internal/apiclient"
	"github.com/hitoshi/eventorg/internal/client"
	"github.com/hitoshi/eventorg/internal/config"
	"github.com/hitoshi/eventorg/internal/docstore"
	"github.com/hitoshi/eventorg/internal/identity"
	"github.com/hitoshi/eventorg/internal/model"
)

// newRemoteClient はbaseURLのAPIサーバーに接続するクライアントを構築する。
func newRemoteClient(cfg *config.Config, httpClient *http.Client) *client.Client {
	var ids *identity.Client
	api := apiclient.New(cfg.BackendURL, httpClient, func() string { return ids.Token() })
	ids = identity.NewClient(identity.NewHTTPAuthenticator(api))

	return client.New(client.Config{
		RemoteTimeout:             cfg.RemoteTimeout,
		FavoriteLookupConcurrency: cfg.FavoriteLookupConcurrency,
	}, docstore.NewHTTPStore(api), ids)
}

// runSmoke は使い捨てアカウントでサインアップからサインアウトまでの一連の操作を実行する。
func runSmoke(ctx context.Context, cfg *config.Config) error {
	c := newRemoteClient(cfg, &http.Client{})
	c.Start()
	defer c.Close()

	email := fmt.Sprintf("smoke-%s@example.com", uuid.NewString()[:8])
	const password = "smoke-pass"

	user, err := c.SignUp(ctx, email, password, password, "Smoke Test")
	if err != nil {
		return fmt.Errorf("smoke: sign up: %w", err)
	}
	slog.Info("smoke: signed up", slog.String("user_id", user.ID), slog.String("email", email))

	date := "2030-01-01T09:00:00Z"
	ev, err := c.CreateEvent(ctx, model.EventInput{
		Title:       "Smoke test event",
		Description: "Created by the smoke command",
		Date:        &date,
		Location:    "Nowhere",
	})
	if err != nil {
		return fmt.Errorf("smoke: create event: %w", err)
	}

	if err := c.LoadEvents(ctx); err != nil {
		return fmt.Errorf("smoke: load events: %w", err)
	}
	if n := len(c.Store().Snapshot().Events.Events); n != 1 {
		return fmt.Errorf("smoke: expected 1 event, got %d", n)
	}

	if _, err := c.ToggleFavorite(ctx, ev.ID); err != nil {
		return fmt.Errorf("smoke: add favorite: %w", err)
	}
	if err := c.LoadFavorites(ctx); err != nil {
		return fmt.Errorf("smoke: load favorites: %w", err)
	}
	favs := c.Store().Snapshot().Favorites.Favorites
	if len(favs) != 1 {
		return fmt.Errorf("smoke: expected 1 favorite, got %d", len(favs))
	}
	if err := c.RemoveFavorite(ctx, favs[0].ID); err != nil {
		return fmt.Errorf("smoke: remove favorite: %w", err)
	}

	if err := c.DeleteEvent(ctx, ev.ID); err != nil {
		return fmt.Errorf("smoke: delete event: %w", err)
	}
	if err := c.SignOut(ctx); err != nil {
		return fmt.Errorf("smoke: sign out: %w", err)
	}

	slog.Info("smoke: completed", slog.String("backend_url", cfg.BackendURL))
	return nil
}
