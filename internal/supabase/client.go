package supabase

import (
	"fmt"

	"floorplan-render-backend/internal/config"

	"github.com/supabase-community/supabase-go"
)

type Client struct {
	Supabase *supabase.Client
	Config   *config.Config
}

// NewClient returns nil without error when Supabase is not configured.
func NewClient(cfg *config.Config) (*Client, error) {
	if !cfg.SupabaseEnabled() {
		return nil, nil
	}

	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &Client{
		Supabase: client,
		Config:   cfg,
	}, nil
}
