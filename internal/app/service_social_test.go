package app

import (
	"context"
	"reflect"
	"testing"
	"time"

	"meridian/api/internal/store"
)

func TestCreateSocialPostNormalizesChannels(t *testing.T) {
	var captured store.SocialPost
	fs := &fakeStore{
		insertSocialPostFn: func(_ context.Context, p store.SocialPost) error {
			captured = p
			return nil
		},
	}
	fs.getSocialPostFn = func(_ context.Context, id string) (store.SocialPost, error) {
		return captured, nil
	}
	svc := newTestService(fs)

	created, err := svc.CreateSocialPost(context.Background(), agentSession(), SocialPostInput{
		Body:     "Meridian 2.0 ships today",
		Channels: []string{"Twitter", " linkedin ", "twitter"},
	})
	if err != nil {
		t.Fatalf("CreateSocialPost: %v", err)
	}
	if !reflect.DeepEqual(created.Channels, []string{"twitter", "linkedin"}) {
		t.Fatalf("expected deduped lowercase channels, got %v", created.Channels)
	}
	if created.Status != "DRAFT" {
		t.Fatalf("expected DRAFT, got %q", created.Status)
	}
}

func TestCreateSocialPostRejectsUnknownChannel(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.CreateSocialPost(context.Background(), agentSession(), SocialPostInput{
		Body:     "Cross-post everywhere",
		Channels: []string{"myspace"},
	})
	assertDomainCode(t, err, "VALIDATION_ERROR")
}

func TestScheduleSocialPostRequiresFutureTime(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.ScheduleSocialPost(context.Background(), "post-1", time.Now().Add(-time.Minute))
	assertDomainCode(t, err, "VALIDATION_ERROR")
}

func TestUnscheduleRequiresScheduledPost(t *testing.T) {
	fs := &fakeStore{
		getSocialPostFn: func(_ context.Context, id string) (store.SocialPost, error) {
			return store.SocialPost{ID: id, Status: "DRAFT"}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.UnscheduleSocialPost(context.Background(), "post-1")
	assertDomainCode(t, err, "NOT_SCHEDULED")
}

func TestPublishSocialPostOnlyOnce(t *testing.T) {
	fs := &fakeStore{
		getSocialPostFn: func(_ context.Context, id string) (store.SocialPost, error) {
			return store.SocialPost{ID: id, Status: "PUBLISHED"}, nil
		},
		markSocialPostPublishedFn: func(context.Context, string) (bool, error) {
			return false, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.PublishSocialPost(context.Background(), "post-1")
	assertDomainCode(t, err, "ALREADY_PUBLISHED")
}

func TestPublishSocialPostFromSchedule(t *testing.T) {
	published := false
	fs := &fakeStore{
		getSocialPostFn: func(_ context.Context, id string) (store.SocialPost, error) {
			status := "SCHEDULED"
			if published {
				status = "PUBLISHED"
			}
			return store.SocialPost{ID: id, Status: status, Channels: []string{"twitter"}}, nil
		},
		markSocialPostPublishedFn: func(context.Context, string) (bool, error) {
			published = true
			return true, nil
		},
	}
	svc := newTestService(fs)

	post, err := svc.PublishSocialPost(context.Background(), "post-1")
	if err != nil {
		t.Fatalf("PublishSocialPost: %v", err)
	}
	if post.Status != "PUBLISHED" {
		t.Fatalf("expected PUBLISHED, got %q", post.Status)
	}
}

func TestUpdateSocialPostRejectsPublished(t *testing.T) {
	fs := &fakeStore{
		getSocialPostFn: func(_ context.Context, id string) (store.SocialPost, error) {
			return store.SocialPost{ID: id, Status: "PUBLISHED"}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.UpdateSocialPost(context.Background(), "post-1", SocialPostInput{
		Body:     "Edited after the fact",
		Channels: []string{"twitter"},
	})
	assertDomainCode(t, err, "ALREADY_PUBLISHED")
}
