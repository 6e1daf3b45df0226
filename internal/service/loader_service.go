package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hirelane/proctor-backend/internal/config"
	"github.com/hirelane/proctor-backend/internal/exam"
	"github.com/hirelane/proctor-backend/internal/model"
	"github.com/hirelane/proctor-backend/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Loader domain errors. NotFound and Expired are terminal: the candidate is
// shown a blocking message with no retry.
var (
	ErrInvitationNotFound  = errors.New("invitation not found")
	ErrInvitationExpired   = errors.New("invitation expired")
	ErrInvitationCompleted = errors.New("invitation already completed")
	ErrTestNotFound        = errors.New("test not found")
)

const testCacheTTL = 6 * time.Hour

// LoaderService is the question bank loader: it resolves invitation tokens,
// fetches immutable test definitions, and prepares the session-local
// (possibly shuffled) copy a session runs against.
type LoaderService struct {
	invRepo  *repository.InvitationRepository
	testRepo *repository.TestRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewLoaderService creates a new LoaderService.
func NewLoaderService(
	invRepo *repository.InvitationRepository,
	testRepo *repository.TestRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *LoaderService {
	return &LoaderService{
		invRepo:  invRepo,
		testRepo: testRepo,
		rdb:      rdb,
		log:      log.With().Str("component", "loader_service").Logger(),
	}
}

// FetchInvitation resolves a token to an invitation, enforcing the lifecycle:
// unknown tokens are NotFound, past-expiry invitations are Expired, and
// already-completed invitations cannot be re-entered.
func (s *LoaderService) FetchInvitation(ctx context.Context, token string) (*model.Invitation, error) {
	inv, err := s.invRepo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("get invitation: %w", err)
	}

	if inv.Status == model.InvitationStatusCompleted {
		return nil, ErrInvitationCompleted
	}
	if inv.Expired(time.Now()) {
		return nil, ErrInvitationExpired
	}

	return inv, nil
}

// FetchInvitationByID is FetchInvitation for authenticated requests, which
// carry the invitation ID in their session token instead of the raw token.
func (s *LoaderService) FetchInvitationByID(ctx context.Context, id uuid.UUID) (*model.Invitation, error) {
	inv, err := s.invRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("get invitation: %w", err)
	}

	if inv.Status == model.InvitationStatusCompleted {
		return nil, ErrInvitationCompleted
	}
	if inv.Expired(time.Now()) {
		return nil, ErrInvitationExpired
	}

	return inv, nil
}

// cachedTest is the Redis representation of a test definition. Correct answers
// are excluded from Question's JSON form, so the cache carries them in a
// side map keyed by question ID and reinjects them on load.
type cachedTest struct {
	Test    *model.TestDefinition `json:"test"`
	Answers map[string]string     `json:"answers"`
}

// FetchTest loads the immutable test definition for an invitation. Definitions
// never change once invitations are out, so they are cached in Redis and
// served from there on reloads and reconnects.
func (s *LoaderService) FetchTest(ctx context.Context, testID uuid.UUID) (*model.TestDefinition, error) {
	cacheKey := config.CacheKey.TestPayloadKey(testID.String())

	if raw, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil && raw != "" {
		var entry cachedTest
		if err := json.Unmarshal([]byte(raw), &entry); err == nil && entry.Test != nil {
			for si := range entry.Test.Sections {
				for qi := range entry.Test.Sections[si].Questions {
					q := &entry.Test.Sections[si].Questions[qi]
					q.CorrectAnswer = entry.Answers[q.ID.String()]
				}
			}
			return entry.Test, nil
		}
		s.log.Warn().Str("test_id", testID.String()).Msg("Corrupt test cache entry, refetching")
	}

	test, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("get test: %w", err)
	}

	entry := cachedTest{Test: test, Answers: make(map[string]string)}
	for _, section := range test.Sections {
		for _, q := range section.Questions {
			entry.Answers[q.ID.String()] = q.CorrectAnswer
		}
	}
	if raw, err := json.Marshal(entry); err == nil {
		if err := s.rdb.Set(ctx, cacheKey, raw, testCacheTTL).Err(); err != nil {
			s.log.Warn().Err(err).Str("test_id", testID.String()).Msg("Persist test cache failed")
		}
	}

	return test, nil
}

// PrepareSessionTest returns the session-local test copy. When shuffling is
// enabled the permutation happens exactly once per session: the first load
// shuffles and persists the order, and every later load (reload, reconnect)
// reapplies the persisted order instead of reshuffling.
func (s *LoaderService) PrepareSessionTest(ctx context.Context, inv *model.Invitation, test *model.TestDefinition) *model.TestDefinition {
	if !test.Settings.ShuffleQuestions {
		return test.Clone()
	}

	orderKey := config.CacheKey.ShuffledOrderKey(inv.ID.String())

	stored, err := s.rdb.Get(ctx, orderKey).Result()
	if err == nil && stored != "" {
		return exam.ApplyOrder(test, parseOrder(stored))
	}
	if err != nil && !errors.Is(err, redis.Nil) {
		// Redis trouble: still serve the exam, at the cost of a fresh
		// shuffle. The stored answer set is keyed by question ID so
		// grading is unaffected.
		s.log.Warn().Err(err).Str("invitation_id", inv.ID.String()).Msg("Shuffled order lookup failed")
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	shuffled := exam.ShuffledClone(test, rng)

	if err := s.rdb.Set(ctx, orderKey, formatOrder(exam.FlattenOrder(shuffled)), 0).Err(); err != nil {
		s.log.Warn().Err(err).Str("invitation_id", inv.ID.String()).Msg("Persist shuffled order failed")
	}

	return shuffled
}

// formatOrder serializes a question-ID order as a comma-joined string.
func formatOrder(order []uuid.UUID) string {
	parts := make([]string, len(order))
	for i, id := range order {
		parts[i] = id.String()
	}
	return strings.Join(parts, ",")
}

func parseOrder(raw string) []uuid.UUID {
	parts := strings.Split(raw, ",")
	order := make([]uuid.UUID, 0, len(parts))
	for _, p := range parts {
		id, err := uuid.Parse(p)
		if err != nil {
			continue
		}
		order = append(order, id)
	}
	return order
}
