package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// CandidateSessionKey returns the cache key for a candidate's session token JTI.
func (r *CacheKeyStruct) CandidateSessionKey(invitationID string) string {
	return fmt.Sprintf("login:%s", invitationID)
}

// SessionStartKey returns the cache key for a candidate's exam start time.
func (r *CacheKeyStruct) SessionStartKey(invitationID string) string {
	return fmt.Sprintf("invitation:%s:session_start", invitationID)
}

// ShuffledOrderKey returns the cache key for a session's shuffled question order.
func (r *CacheKeyStruct) ShuffledOrderKey(invitationID string) string {
	return fmt.Sprintf("invitation:%s:shuffled_order", invitationID)
}

// AnswersKey returns the cache key for a candidate's autosaved answers.
func (r *CacheKeyStruct) AnswersKey(invitationID string) string {
	return fmt.Sprintf("invitation:%s:answers", invitationID)
}

// TabSwitchCountKey returns the cache key for a session's tab-switch counter.
func (r *CacheKeyStruct) TabSwitchCountKey(invitationID string) string {
	return fmt.Sprintf("invitation:%s:tab_switches", invitationID)
}

// VerificationMarkerKey returns the cache key recording verification completion.
func (r *CacheKeyStruct) VerificationMarkerKey(token string) string {
	return fmt.Sprintf("verification:%s:complete", token)
}

// SubmissionLockKey returns the key guarding single-flight submission.
func (r *CacheKeyStruct) SubmissionLockKey(invitationID string) string {
	return fmt.Sprintf("invitation:%s:submission_lock", invitationID)
}

// TestPayloadKey returns the cache key for a test's full definition.
func (r *CacheKeyStruct) TestPayloadKey(testID string) string {
	return fmt.Sprintf("test:%s:payload", testID)
}

var CacheKey = NewCacheKeyStruct()
