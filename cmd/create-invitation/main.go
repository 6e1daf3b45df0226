package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hirelane/proctor-backend/internal/config"
	"github.com/hirelane/proctor-backend/internal/database"
	"github.com/hirelane/proctor-backend/internal/logger"
	"github.com/hirelane/proctor-backend/internal/model"
	"github.com/hirelane/proctor-backend/internal/repository"
	"github.com/hirelane/proctor-backend/internal/service"
	"golang.org/x/term"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	invitationRepo := repository.NewInvitationRepository(pool)
	authService := service.NewAuthService(cfg, nil)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create New Invitation ===")

	fmt.Print("Enter Candidate Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)
	if email == "" {
		fmt.Println("Error: Email is required")
		return
	}

	fmt.Print("Enter Candidate Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		fmt.Println("Error: Name is required")
		return
	}

	fmt.Print("Enter Company Name: ")
	company, _ := reader.ReadString('\n')
	company = strings.TrimSpace(company)

	fmt.Print("Enter Test ID (UUID): ")
	testIDStr, _ := reader.ReadString('\n')
	testID, err := uuid.Parse(strings.TrimSpace(testIDStr))
	if err != nil {
		fmt.Println("Error: Test ID must be a valid UUID")
		return
	}

	fmt.Print("Enter Validity (days, default 7): ")
	daysStr, _ := reader.ReadString('\n')
	daysStr = strings.TrimSpace(daysStr)
	days := 7
	if daysStr != "" {
		d, err := strconv.Atoi(daysStr)
		if err != nil || d < 1 {
			fmt.Println("Error: Validity must be a positive number of days")
			return
		}
		days = d
	}

	// Optional access code; empty means the token alone grants entry.
	fmt.Print("Enter Access Code (optional): ")
	byteCode, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading access code")
		return
	}
	accessCode := string(byteCode)
	fmt.Println()

	// ─── Logic ─────────────────────────────────────────────────────────
	codeHash := ""
	if accessCode != "" {
		if len(accessCode) < 4 {
			fmt.Println("Error: Access code must be at least 4 characters")
			return
		}
		codeHash, err = authService.HashAccessCode(accessCode)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to hash access code")
		}
	}

	tokenBytes := make([]byte, 24)
	if _, err := rand.Read(tokenBytes); err != nil {
		log.Fatal().Err(err).Msg("Failed to generate token")
	}
	token := hex.EncodeToString(tokenBytes)

	inv := &model.Invitation{
		ID:             uuid.New(),
		Token:          token,
		CandidateEmail: email,
		CandidateName:  name,
		CompanyName:    company,
		TestID:         testID,
		Status:         model.InvitationStatusActive,
		AccessCodeHash: codeHash,
		ExpiresAt:      time.Now().AddDate(0, 0, days),
	}

	if err := invitationRepo.Create(ctx, inv); err != nil {
		log.Fatal().Err(err).Msg("Failed to create invitation")
	}

	fmt.Printf("\nSuccess! Invitation for '%s' created.\n", email)
	fmt.Printf("  ID:      %s\n", inv.ID)
	fmt.Printf("  Token:   %s\n", token)
	fmt.Printf("  Expires: %s\n", inv.ExpiresAt.Format(time.RFC3339))
}
