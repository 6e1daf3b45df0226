package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hirelane/proctor-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TestRepository loads immutable test definitions. A definition is assembled
// from three tables (tests, sections, questions) in one pass each; sections
// and questions keep their stored order.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// GetByID fetches a full test definition with sections and questions.
func (r *TestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.TestDefinition, error) {
	t := &model.TestDefinition{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, duration_minutes, passing_score, instructions,
		        shuffle_questions, prevent_tab_switching, allow_calculator, auto_submit,
		        created_at, updated_at
		 FROM tests WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.DurationMinutes, &t.PassingScore, &t.Instructions,
		&t.Settings.ShuffleQuestions, &t.Settings.PreventTabSwitching,
		&t.Settings.AllowCalculator, &t.Settings.AutoSubmit,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	sections, err := r.listSections(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	t.Sections = sections

	return t, nil
}

func (r *TestRepository) listSections(ctx context.Context, testID uuid.UUID) ([]model.Section, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, duration_minutes
		 FROM sections WHERE test_id = $1
		 ORDER BY order_num ASC`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sections []model.Section
	byID := make(map[uuid.UUID]int)
	for rows.Next() {
		var s model.Section
		if err := rows.Scan(&s.ID, &s.Title, &s.DurationMinutes); err != nil {
			return nil, err
		}
		byID[s.ID] = len(sections)
		sections = append(sections, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	qrows, err := r.pool.Query(ctx,
		`SELECT q.id, q.section_id, q.text, q.type, q.options, q.correct_answer, q.points, q.order_num
		 FROM questions q
		 JOIN sections s ON q.section_id = s.id
		 WHERE s.test_id = $1
		 ORDER BY s.order_num ASC, q.order_num ASC`, testID)
	if err != nil {
		return nil, err
	}
	defer qrows.Close()

	for qrows.Next() {
		var q model.Question
		var optionsJSON []byte
		if err := qrows.Scan(&q.ID, &q.SectionID, &q.Text, &q.Type, &optionsJSON,
			&q.CorrectAnswer, &q.Points, &q.OrderNum); err != nil {
			return nil, err
		}
		if len(optionsJSON) > 0 {
			if err := json.Unmarshal(optionsJSON, &q.Options); err != nil {
				return nil, fmt.Errorf("decode options for question %s: %w", q.ID, err)
			}
		}
		idx, ok := byID[q.SectionID]
		if !ok {
			continue // orphaned question, skip
		}
		sections[idx].Questions = append(sections[idx].Questions, q)
	}
	return sections, qrows.Err()
}
