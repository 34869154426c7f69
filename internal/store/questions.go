package store

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"zeelink/internal/middleware"
	"zeelink/internal/models"
	"zeelink/internal/observability"
	"zeelink/internal/validation"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// SubmitQuestion posts text to the board as actor. The text is checked
// for length before moderation runs; the moderation status is stored with
// the question and rejected questions are kept off the public list.
func (s *Store) SubmitQuestion(ctx context.Context, actor *models.Identity, text string) (*models.Question, Outcome) {
	span, ctx := observability.NewSpan(ctx, "store.SubmitQuestion")
	defer span.End()

	q, o := s.submitQuestion(ctx, actor, text)
	span.SetError(o.Err)
	return q, record("submit_question", o)
}

func (s *Store) submitQuestion(ctx context.Context, actor *models.Identity, text string) (*models.Question, Outcome) {
	if err := requireActor(actor); err != nil {
		return nil, failed(err)
	}
	if err := validation.ValidateQuestionText(text); err != nil {
		return nil, failed(models.NewValidationError(err.Error()))
	}
	text = strings.TrimSpace(text)

	status := s.policy.Classify(text)
	observability.ModerationDecisions.WithLabelValues(string(status)).Inc()

	q := &models.Question{
		ID:               uuid.NewString(),
		IdentityID:       actor.ID,
		AuthorName:       actor.Name,
		Text:             text,
		VotedIdentityIDs: models.StringList{},
		Status:           status,
		CreatedAt:        s.now(),
	}
	if err := s.questions.Insert(ctx, q); err != nil {
		return nil, failed(wrapRemote("insert question", err))
	}

	s.mu.Lock()
	s.questionM = append(s.questionM, q.Clone())
	s.mu.Unlock()

	middleware.Logger.InfoContext(ctx, "question submitted",
		slog.String("question_id", q.ID), slog.String("status", string(status)))
	return q, applied()
}

// VoteQuestion adds actor's vote to an approved question. Voting twice is a
// no-op; the membership check and the write happen under the question lock.
func (s *Store) VoteQuestion(ctx context.Context, actor *models.Identity, id string) Outcome {
	span, ctx := observability.NewSpan(ctx, "store.VoteQuestion", attribute.String("question.id", id))
	defer span.End()

	o := s.voteQuestion(ctx, actor, id)
	span.SetError(o.Err)
	return record("vote_question", o)
}

func (s *Store) voteQuestion(ctx context.Context, actor *models.Identity, id string) Outcome {
	if err := requireActor(actor); err != nil {
		return failed(err)
	}
	unlock := s.locks.lock(questionKey(id))
	defer unlock()

	cur, err := s.currentQuestion(ctx, id)
	if err != nil {
		return failed(err)
	}
	if cur.Status != models.QuestionApproved {
		return failed(models.NewValidationError("Question is not open for voting"))
	}
	if cur.HasVoted(actor.ID) {
		return noop()
	}

	cur.Votes++
	cur.VotedIdentityIDs = append(cur.VotedIdentityIDs, actor.ID)
	if err := s.questions.Update(ctx, id, map[string]any{
		"votes":              cur.Votes,
		"voted_identity_ids": cur.VotedIdentityIDs,
	}); err != nil {
		return failed(wrapRemote("vote question", err))
	}

	s.mu.Lock()
	s.questionM = replaceByID(s.questionM, cur, questionID)
	s.mu.Unlock()
	return applied()
}

func (s *Store) currentQuestion(ctx context.Context, id string) (*models.Question, error) {
	s.mu.RLock()
	q := findByID(s.questionM, id, questionID)
	s.mu.RUnlock()
	if q != nil {
		return q.Clone(), nil
	}
	return s.questions.GetOne(ctx, id)
}

// ListQuestions returns approved questions, or every question when
// includeAll is set, most voted first.
func (s *Store) ListQuestions(includeAll bool) []*models.Question {
	s.mu.RLock()
	out := make([]*models.Question, 0, len(s.questionM))
	for _, q := range s.questionM {
		if includeAll || q.Status == models.QuestionApproved {
			out = append(out, q.Clone())
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Votes != out[j].Votes {
			return out[i].Votes > out[j].Votes
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
