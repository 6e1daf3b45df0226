package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hirelane/proctor-backend/internal/exam"
	"github.com/hirelane/proctor-backend/internal/middleware"
	"github.com/hirelane/proctor-backend/internal/model"
	"github.com/hirelane/proctor-backend/internal/response"
	"github.com/hirelane/proctor-backend/internal/service"
	"github.com/hirelane/proctor-backend/internal/validator"
	"github.com/hirelane/proctor-backend/internal/verification"
)

// CandidateHandler handles the candidate-facing endpoints: invitation claim,
// the verification flow, and the exam session lifecycle.
type CandidateHandler struct {
	authService       *service.AuthService
	loaderService     *service.LoaderService
	verificationSvc   *service.VerificationService
	mediaService      *service.MediaService
	sessionService    *service.SessionService
	submissionService *service.SubmissionService
}

// NewCandidateHandler creates a new CandidateHandler.
func NewCandidateHandler(
	authService *service.AuthService,
	loaderService *service.LoaderService,
	verificationSvc *service.VerificationService,
	mediaService *service.MediaService,
	sessionService *service.SessionService,
	submissionService *service.SubmissionService,
) *CandidateHandler {
	return &CandidateHandler{
		authService:       authService,
		loaderService:     loaderService,
		verificationSvc:   verificationSvc,
		mediaService:      mediaService,
		sessionService:    sessionService,
		submissionService: submissionService,
	}
}

// ClaimInvitation godoc
// POST /api/v1/invitations/claim
// Exchanges an invitation token (plus its access code, when one is set) for
// a candidate session JWT. Claiming again invalidates any earlier token.
func (h *CandidateHandler) ClaimInvitation(c *gin.Context) {
	var req model.ClaimInvitationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	inv, err := h.loaderService.FetchInvitation(c.Request.Context(), req.Token)
	if err != nil {
		failInvitation(c, err)
		return
	}

	if err := h.authService.CheckAccessCode(inv.AccessCodeHash, req.AccessCode); err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidAccessCode)
		return
	}

	token, err := h.authService.MintSessionToken(c.Request.Context(), inv)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, model.ClaimInvitationResponse{
		SessionToken: token,
		Invitation:   *inv,
	})
}

// GetInvitation godoc
// GET /api/v1/candidate/invitation
func (h *CandidateHandler) GetInvitation(c *gin.Context) {
	inv, ok := h.invitation(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{"invitation": inv})
}

// GetVerification godoc
// GET /api/v1/candidate/verification
// Read-only snapshot of the verification flow. Used to render the current
// step and for previewing without mutating anything.
func (h *CandidateHandler) GetVerification(c *gin.Context) {
	inv, ok := h.invitation(c)
	if !ok {
		return
	}

	snapshot, err := h.verificationSvc.Preview(c.Request.Context(), inv)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, snapshot)
}

// PostSystemCheck godoc
// POST /api/v1/candidate/verification/system-check
// Records the client's environment snapshot. Recording never advances the
// flow; the explicit advance call below does.
func (h *CandidateHandler) PostSystemCheck(c *gin.Context) {
	inv, ok := h.invitation(c)
	if !ok {
		return
	}

	var req model.SystemCheckRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	report := model.SystemCheckReport(req)
	if err := h.verificationSvc.RecordSystemCheck(c.Request.Context(), inv, report); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	snapshot, _ := h.verificationSvc.Preview(c.Request.Context(), inv)
	response.Success(c, http.StatusOK, snapshot)
}

// AdvanceSystemCheck godoc
// POST /api/v1/candidate/verification/system-check/advance
// Moves past the system-check step, or names each failing check.
func (h *CandidateHandler) AdvanceSystemCheck(c *gin.Context) {
	inv, ok := h.invitation(c)
	if !ok {
		return
	}

	if err := h.verificationSvc.AdvanceSystemCheck(c.Request.Context(), inv); err != nil {
		var checksErr *verification.ChecksFailedError
		if errors.As(err, &checksErr) {
			fields := make(map[string]string, len(checksErr.Failed))
			for _, name := range checksErr.Failed {
				fields[name] = "failed"
			}
			response.FailWithFields(c, http.StatusConflict, response.ErrChecksFailed, fields)
			return
		}
		failVerification(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"step": model.StepIdentityVerification})
}

// UploadVerificationImage godoc
// POST /api/v1/candidate/verification/images
// Multipart upload of one verification capture: form field "kind" is
// "face" or "id_card", field "image" carries the file.
func (h *CandidateHandler) UploadVerificationImage(c *gin.Context) {
	inv, ok := h.invitation(c)
	if !ok {
		return
	}

	kind := service.ImageKind(c.PostForm("kind"))
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer file.Close()

	url, err := h.mediaService.SaveVerificationImage(inv.ID, kind, file, header)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnsupportedFileType), errors.Is(err, service.ErrUnknownImageKind):
			response.Fail(c, http.StatusBadRequest, response.ErrUnsupportedFile)
		case errors.Is(err, service.ErrFileTooLarge):
			response.Fail(c, http.StatusRequestEntityTooLarge, response.ErrFileTooLarge)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrUploadFailed)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"url": url, "kind": kind})
}

// SubmitIdentity godoc
// POST /api/v1/candidate/verification/identity
func (h *CandidateHandler) SubmitIdentity(c *gin.Context) {
	inv, ok := h.invitation(c)
	if !ok {
		return
	}

	var req model.IdentitySubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	artifacts := model.IdentityArtifacts{
		CandidateRef: req.CandidateRef,
		IDCardURL:    req.IDCardURL,
		FaceURL:      req.FaceURL,
	}
	if err := h.verificationSvc.SubmitIdentity(c.Request.Context(), inv, artifacts); err != nil {
		failVerification(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"step": model.StepRules})
}

// AcceptRules godoc
// POST /api/v1/candidate/verification/rules
// Completes verification. Requires accepted=true; declining keeps the flow
// on the rules step.
func (h *CandidateHandler) AcceptRules(c *gin.Context) {
	inv, ok := h.invitation(c)
	if !ok {
		return
	}

	var req model.RulesAcceptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.verificationSvc.AcceptRules(c.Request.Context(), inv, req.Accepted); err != nil {
		failVerification(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"step": model.StepComplete})
}

// StepBack godoc
// POST /api/v1/candidate/verification/back
func (h *CandidateHandler) StepBack(c *gin.Context) {
	inv, ok := h.invitation(c)
	if !ok {
		return
	}

	if err := h.verificationSvc.Back(c.Request.Context(), inv); err != nil {
		failVerification(c, err)
		return
	}

	snapshot, _ := h.verificationSvc.Preview(c.Request.Context(), inv)
	response.Success(c, http.StatusOK, snapshot)
}

// EnterExam godoc
// POST /api/v1/candidate/exam/enter
// Starts (or restores) the exam session and returns the sanitized test
// payload. Refused until verification is complete.
func (h *CandidateHandler) EnterExam(c *gin.Context) {
	inv, ok := h.invitation(c)
	if !ok {
		return
	}

	_, payload, err := h.sessionService.Enter(c.Request.Context(), inv)
	if err != nil {
		if errors.Is(err, service.ErrVerificationIncomplete) {
			response.Fail(c, http.StatusForbidden, response.ErrVerificationRequired)
			return
		}
		if errors.Is(err, service.ErrTestNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, payload)
}

// GetExamState godoc
// GET /api/v1/candidate/exam/state
// Reload snapshot: remaining time, cursor, answers, completion, and the
// integrity counters, so the exam page can resume in place.
func (h *CandidateHandler) GetExamState(c *gin.Context) {
	inv, ok := h.invitation(c)
	if !ok {
		return
	}

	state, err := h.sessionService.State(inv.ID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// SubmitExam godoc
// POST /api/v1/candidate/exam/submit
// Manual submission trigger. Safe to call repeatedly: the engine accepts
// exactly one submission per session, and a failed persist can be retried.
func (h *CandidateHandler) SubmitExam(c *gin.Context) {
	inv, ok := h.invitation(c)
	if !ok {
		return
	}

	ack, err := h.submissionService.Submit(c.Request.Context(), inv, service.SubmitTriggerManual)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoSession):
			response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
		case errors.Is(err, service.ErrSubmitInFlight):
			response.Fail(c, http.StatusConflict, response.ErrSubmission)
		case errors.Is(err, exam.ErrDegenerateTest):
			response.Fail(c, http.StatusUnprocessableEntity, response.ErrDegenerateTest)
		case errors.Is(err, service.ErrSubmitFailed):
			// Retryable: the computed result is parked server-side.
			response.Fail(c, http.StatusBadGateway, response.ErrSubmission)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, ack)
}

// GetSubmissionStatus godoc
// GET /api/v1/candidate/exam/status
// Post-submission acknowledgement. Never exposes the score.
func (h *CandidateHandler) GetSubmissionStatus(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	submitted, err := h.submissionService.Submitted(c.Request.Context(), claims.InvitationID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"submitted": submitted})
}

// invitation resolves the authenticated invitation, writing the failure
// response itself when it cannot.
func (h *CandidateHandler) invitation(c *gin.Context) (*model.Invitation, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, false
	}

	inv, err := h.loaderService.FetchInvitationByID(c.Request.Context(), claims.InvitationID)
	if err != nil {
		failInvitation(c, err)
		return nil, false
	}
	return inv, true
}

// failInvitation maps loader lifecycle errors onto response codes. NotFound
// and Expired are terminal for the candidate; Completed blocks re-entry.
func failInvitation(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvitationNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrInvitationExpired):
		response.Fail(c, http.StatusGone, response.ErrInvitationExpired)
	case errors.Is(err, service.ErrInvitationCompleted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadyCompleted)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// failVerification maps verification flow errors onto response codes.
func failVerification(c *gin.Context, err error) {
	switch {
	case errors.Is(err, verification.ErrWrongStep):
		response.Fail(c, http.StatusConflict, response.ErrWrongStep)
	case errors.Is(err, verification.ErrMissingIdentity),
		errors.Is(err, verification.ErrRulesNotAccepted):
		response.FailWithMessage(c, http.StatusBadRequest, response.ErrValidation, err.Error())
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
