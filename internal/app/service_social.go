package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"meridian/api/internal/store"
	"meridian/api/internal/util"
)

var allowedSocialChannels = map[string]struct{}{
	"twitter":   {},
	"linkedin":  {},
	"facebook":  {},
	"instagram": {},
}

var allowedSocialStatuses = map[string]struct{}{
	"DRAFT":     {},
	"SCHEDULED": {},
	"PUBLISHED": {},
}

type SocialPostInput struct {
	Body     string   `json:"body"`
	Channels []string `json:"channels"`
}

func validateSocialPostInput(input SocialPostInput) ([]string, error) {
	if strings.TrimSpace(input.Body) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "body is required", nil)
	}
	if len(input.Channels) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "at least one channel is required", nil)
	}
	channels := make([]string, 0, len(input.Channels))
	seen := map[string]struct{}{}
	for _, channel := range input.Channels {
		channel = strings.ToLower(strings.TrimSpace(channel))
		if _, ok := allowedSocialChannels[channel]; !ok {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown channel", map[string]any{"channel": channel})
		}
		if _, dup := seen[channel]; dup {
			continue
		}
		seen[channel] = struct{}{}
		channels = append(channels, channel)
	}
	return channels, nil
}

func (s *Service) CreateSocialPost(ctx context.Context, session Session, input SocialPostInput) (store.SocialPost, error) {
	channels, err := validateSocialPostInput(input)
	if err != nil {
		return store.SocialPost{}, err
	}
	post := store.SocialPost{
		ID:       util.NewID("post"),
		Body:     input.Body,
		Channels: channels,
		Status:   "DRAFT",
		AuthorID: session.UserID,
	}
	if err := s.store.InsertSocialPost(ctx, post); err != nil {
		return store.SocialPost{}, err
	}
	return s.store.GetSocialPost(ctx, post.ID)
}

func (s *Service) GetSocialPost(ctx context.Context, id string) (store.SocialPost, error) {
	return s.store.GetSocialPost(ctx, id)
}

func (s *Service) ListSocialPosts(ctx context.Context, status string) ([]store.SocialPost, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if status != "" {
		if _, ok := allowedSocialStatuses[status]; !ok {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown status", map[string]any{"status": status})
		}
	}
	return s.store.ListSocialPosts(ctx, status)
}

func (s *Service) UpdateSocialPost(ctx context.Context, id string, input SocialPostInput) (store.SocialPost, error) {
	channels, err := validateSocialPostInput(input)
	if err != nil {
		return store.SocialPost{}, err
	}
	post, err := s.store.GetSocialPost(ctx, id)
	if err != nil {
		return store.SocialPost{}, err
	}
	if post.Status == "PUBLISHED" {
		return store.SocialPost{}, domainError(http.StatusConflict, "ALREADY_PUBLISHED", "published posts cannot be edited", nil)
	}
	post.Body = input.Body
	post.Channels = channels
	if err := s.store.UpdateSocialPost(ctx, post); err != nil {
		return store.SocialPost{}, err
	}
	return s.store.GetSocialPost(ctx, post.ID)
}

func (s *Service) ScheduleSocialPost(ctx context.Context, id string, at time.Time) (store.SocialPost, error) {
	if !at.After(time.Now()) {
		return store.SocialPost{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "scheduledAt must be in the future", nil)
	}
	post, err := s.store.GetSocialPost(ctx, id)
	if err != nil {
		return store.SocialPost{}, err
	}
	if post.Status == "PUBLISHED" {
		return store.SocialPost{}, domainError(http.StatusConflict, "ALREADY_PUBLISHED", "published posts cannot be scheduled", nil)
	}
	if err := s.store.UpdateSocialPostSchedule(ctx, post.ID, "SCHEDULED", at); err != nil {
		return store.SocialPost{}, err
	}
	return s.store.GetSocialPost(ctx, post.ID)
}

func (s *Service) UnscheduleSocialPost(ctx context.Context, id string) (store.SocialPost, error) {
	post, err := s.store.GetSocialPost(ctx, id)
	if err != nil {
		return store.SocialPost{}, err
	}
	if post.Status != "SCHEDULED" {
		return store.SocialPost{}, domainError(http.StatusConflict, "NOT_SCHEDULED", "post is not scheduled", map[string]any{"status": post.Status})
	}
	if err := s.store.UpdateSocialPostSchedule(ctx, post.ID, "DRAFT", nil); err != nil {
		return store.SocialPost{}, err
	}
	return s.store.GetSocialPost(ctx, post.ID)
}

// PublishSocialPost marks the post published now. Scheduling here is
// advisory; publishing early is allowed.
func (s *Service) PublishSocialPost(ctx context.Context, id string) (store.SocialPost, error) {
	post, err := s.store.GetSocialPost(ctx, id)
	if err != nil {
		return store.SocialPost{}, err
	}
	published, err := s.store.MarkSocialPostPublished(ctx, post.ID)
	if err != nil {
		return store.SocialPost{}, err
	}
	if !published {
		return store.SocialPost{}, domainError(http.StatusConflict, "ALREADY_PUBLISHED", "post is already published", nil)
	}
	updated, err := s.store.GetSocialPost(ctx, post.ID)
	if err != nil {
		return store.SocialPost{}, err
	}
	s.dispatchWebhooks("social.published", map[string]any{
		"id":       updated.ID,
		"channels": updated.Channels,
		"body":     updated.Body,
	})
	return updated, nil
}

func (s *Service) DeleteSocialPost(ctx context.Context, id string) error {
	post, err := s.store.GetSocialPost(ctx, id)
	if err != nil {
		return err
	}
	return s.store.DeleteSocialPost(ctx, post.ID)
}
