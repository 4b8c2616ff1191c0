package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/classroom-connect/quiz-service/internal/cache"
	"github.com/classroom-connect/quiz-service/internal/events"
	"github.com/classroom-connect/quiz-service/internal/models"
	"github.com/classroom-connect/quiz-service/internal/repositories"
	"github.com/classroom-connect/quiz-service/internal/validator"
)

func newTestQuizService(repo *fakeRepository, publisher events.EventPublisher) QuizService {
	return NewQuizService(repo, nil, testLogger(), validator.New(), cache.NewCacheManager(nil), publisher)
}

func intPtr(v int) *int {
	return &v
}

func tutorialQuizRequest() *CreateQuizRequest {
	return &CreateQuizRequest{
		Title:          "Tutorial 2: Pointers",
		QuizType:       models.QuizTutorial,
		TutorialNumber: intPtr(2),
		CourseID:       strPtr("CS101"),
		Questions: []validator.QuestionCreateRequest{
			{
				Type: models.SingleChoice,
				Text: "Which declaration yields a pointer?",
				Choices: []validator.ChoiceCreateRequest{
					{Text: "var p *int", IsCorrect: true, Order: 0},
					{Text: "var p int", Order: 1},
				},
			},
		},
	}
}

func TestQuizCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("staff creates tutorial quiz with defaults", func(t *testing.T) {
		repo := newFakeRepository()
		repo.addUser(&models.User{ID: "staff-1", FullName: "Staff", Email: "staff@example.edu", Role: models.RoleStaff})
		svc := newTestQuizService(repo, nil)

		resp, err := svc.Create(ctx, tutorialQuizRequest(), "staff-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Quiz.ID == 0 {
			t.Error("expected quiz to receive an id")
		}
		if resp.Quiz.PassingScore != 50 {
			t.Errorf("expected default passing score 50, got %v", resp.Quiz.PassingScore)
		}
		if !resp.Quiz.ShowResults {
			t.Error("expected show_results to default to true")
		}
		if resp.QuestionCount != 1 {
			t.Errorf("expected 1 question, got %d", resp.QuestionCount)
		}
		if resp.Quiz.Questions[0].Points != 1 {
			t.Errorf("expected default question points 1, got %v", resp.Quiz.Questions[0].Points)
		}
		if !resp.CanEdit || !resp.CanDelete {
			t.Error("creator should be able to edit and delete")
		}
	})

	t.Run("student cannot create", func(t *testing.T) {
		repo := newFakeRepository()
		repo.addUser(&models.User{ID: "22Z101", FullName: "Student", Email: "s@example.edu", Role: models.RoleStudent})
		svc := newTestQuizService(repo, nil)

		_, err := svc.Create(ctx, tutorialQuizRequest(), "22Z101")
		var permErr *PermissionError
		if !errors.As(err, &permErr) {
			t.Fatalf("expected PermissionError, got %v", err)
		}
	})

	t.Run("tutorial quiz requires course", func(t *testing.T) {
		repo := newFakeRepository()
		repo.addUser(&models.User{ID: "staff-1", FullName: "Staff", Email: "staff@example.edu", Role: models.RoleStaff})
		svc := newTestQuizService(repo, nil)

		req := tutorialQuizRequest()
		req.CourseID = nil
		if _, err := svc.Create(ctx, req, "staff-1"); err == nil {
			t.Fatal("expected validation error for tutorial without course_id")
		}
	})
}

func TestQuizAnswerKeyVisibility(t *testing.T) {
	ctx := context.Background()

	seed := func(repo *fakeRepository, ended bool) *models.Quiz {
		repo.addUser(&models.User{ID: "staff-1", FullName: "Staff", Email: "staff@example.edu", Role: models.RoleStaff})
		repo.addUser(&models.User{ID: "22Z101", FullName: "Student", Email: "s@example.edu", Role: models.RoleStudent})
		return repo.addQuiz(&models.Quiz{
			Title:     "Visibility",
			QuizType:  models.QuizRegular,
			CreatedBy: "staff-1",
			IsEnded:   ended,
			Questions: []models.Question{
				{
					Type:          models.FreeText,
					Text:          "Define a goroutine",
					Points:        2,
					CorrectAnswer: strPtr("a lightweight thread"),
				},
				{
					Type:   models.SingleChoice,
					Text:   "Pick one",
					Points: 1,
					Choices: []models.Choice{
						{Text: "right", IsCorrect: true},
						{Text: "wrong"},
					},
				},
			},
		})
	}

	t.Run("student never sees the key while open", func(t *testing.T) {
		repo := newFakeRepository()
		quiz := seed(repo, false)
		svc := newTestQuizService(repo, nil)

		resp, err := svc.GetByIDWithQuestions(ctx, quiz.ID, "22Z101")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, q := range resp.Quiz.Questions {
			if q.CorrectAnswer != nil {
				t.Error("correct_answer leaked to student")
			}
			for _, c := range q.Choices {
				if c.IsCorrect {
					t.Error("is_correct leaked to student")
				}
			}
		}

		// Sanitizing the response must not corrupt the stored quiz.
		if quiz.Questions[0].CorrectAnswer == nil {
			t.Error("stored quiz lost its answer key")
		}
	})

	t.Run("staff sees the key", func(t *testing.T) {
		repo := newFakeRepository()
		quiz := seed(repo, false)
		svc := newTestQuizService(repo, nil)

		resp, err := svc.GetByIDWithQuestions(ctx, quiz.ID, "staff-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Quiz.Questions[0].CorrectAnswer == nil {
			t.Error("staff should see correct_answer")
		}
	})

	t.Run("student sees the key once ended", func(t *testing.T) {
		repo := newFakeRepository()
		quiz := seed(repo, true)
		svc := newTestQuizService(repo, nil)

		resp, err := svc.GetByIDWithQuestions(ctx, quiz.ID, "22Z101")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Quiz.Questions[0].CorrectAnswer == nil {
			t.Error("answer key should be visible after the quiz ends")
		}
	})
}

func TestQuizUpdate(t *testing.T) {
	ctx := context.Background()

	seed := func(repo *fakeRepository) *models.Quiz {
		repo.addUser(&models.User{ID: "staff-1", FullName: "Staff", Email: "staff@example.edu", Role: models.RoleStaff})
		repo.addUser(&models.User{ID: "staff-2", FullName: "Other", Email: "other@example.edu", Role: models.RoleStaff})
		return repo.addQuiz(&models.Quiz{
			Title:     "Before",
			QuizType:  models.QuizRegular,
			CreatedBy: "staff-1",
			Questions: []models.Question{
				{
					Type:   models.SingleChoice,
					Text:   "Q1",
					Points: 1,
					Choices: []models.Choice{
						{Text: "a", IsCorrect: true},
						{Text: "b"},
					},
				},
			},
		})
	}

	t.Run("creator updates title", func(t *testing.T) {
		repo := newFakeRepository()
		quiz := seed(repo)
		svc := newTestQuizService(repo, nil)

		resp, err := svc.Update(ctx, quiz.ID, &UpdateQuizRequest{Title: strPtr("After")}, "staff-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Quiz.Title != "After" {
			t.Errorf("expected title After, got %q", resp.Quiz.Title)
		}
	})

	t.Run("non-creator staff denied", func(t *testing.T) {
		repo := newFakeRepository()
		quiz := seed(repo)
		svc := newTestQuizService(repo, nil)

		_, err := svc.Update(ctx, quiz.ID, &UpdateQuizRequest{Title: strPtr("Hijack")}, "staff-2")
		var permErr *PermissionError
		if !errors.As(err, &permErr) {
			t.Fatalf("expected PermissionError, got %v", err)
		}
	})

	t.Run("ended quiz rejects updates", func(t *testing.T) {
		repo := newFakeRepository()
		quiz := seed(repo)
		quiz.IsEnded = true
		svc := newTestQuizService(repo, nil)

		if _, err := svc.Update(ctx, quiz.ID, &UpdateQuizRequest{Title: strPtr("After")}, "staff-1"); !errors.Is(err, ErrQuizEnded) {
			t.Fatalf("expected ErrQuizEnded, got %v", err)
		}
	})

	t.Run("question replacement blocked once attempts exist", func(t *testing.T) {
		repo := newFakeRepository()
		quiz := seed(repo)
		repo.addUser(&models.User{ID: "22Z101", FullName: "Student", Email: "s@example.edu", Role: models.RoleStudent})
		repo.addAttempt(&models.QuizAttempt{
			QuizID:    quiz.ID,
			UserID:    "22Z101",
			Status:    models.AttemptInProgress,
			StartedAt: time.Now(),
		})
		svc := newTestQuizService(repo, nil)

		req := &UpdateQuizRequest{
			Questions: []validator.QuestionCreateRequest{
				{
					Type: models.SingleChoice,
					Text: "Replacement",
					Choices: []validator.ChoiceCreateRequest{
						{Text: "x", IsCorrect: true},
						{Text: "y"},
					},
				},
			},
		}
		if _, err := svc.Update(ctx, quiz.ID, req, "staff-1"); !errors.Is(err, ErrQuizHasAttempts) {
			t.Fatalf("expected ErrQuizHasAttempts, got %v", err)
		}
	})
}

func TestQuizDelete(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	repo.addUser(&models.User{ID: "staff-1", FullName: "Staff", Email: "staff@example.edu", Role: models.RoleStaff})
	repo.addUser(&models.User{ID: "22Z101", FullName: "Student", Email: "s@example.edu", Role: models.RoleStudent})
	quiz := repo.addQuiz(&models.Quiz{Title: "Doomed", QuizType: models.QuizRegular, CreatedBy: "staff-1"})
	svc := newTestQuizService(repo, nil)

	repo.addAttempt(&models.QuizAttempt{
		QuizID:    quiz.ID,
		UserID:    "22Z101",
		Status:    models.AttemptInProgress,
		StartedAt: time.Now(),
	})
	if err := svc.Delete(ctx, quiz.ID, "staff-1"); !errors.Is(err, ErrQuizHasAttempts) {
		t.Fatalf("expected ErrQuizHasAttempts, got %v", err)
	}

	empty := repo.addQuiz(&models.Quiz{Title: "Unused", QuizType: models.QuizRegular, CreatedBy: "staff-1"})
	if err := svc.Delete(ctx, empty.ID, "staff-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := repo.Quiz().GetByID(ctx, nil, empty.ID); !repositories.IsNotFoundError(err) {
		t.Error("expected quiz to be gone")
	}
}

func TestQuizEnd(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	repo.addUser(&models.User{ID: "staff-1", FullName: "Staff", Email: "staff@example.edu", Role: models.RoleStaff})
	quiz := repo.addQuiz(&models.Quiz{
		Title:     "Closing",
		QuizType:  models.QuizTutorial,
		CourseID:  strPtr("CS101"),
		CreatedBy: "staff-1",
	})
	publisher := events.NewMockEventPublisher(testLogger())
	svc := newTestQuizService(repo, publisher)

	if err := svc.End(ctx, quiz.ID, "staff-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !quiz.IsEnded {
		t.Error("expected quiz to be ended")
	}

	published := publisher.GetEventsByType(events.EventQuizEnded)
	if len(published) != 1 {
		t.Fatalf("expected 1 quiz ended event, got %d", len(published))
	}

	if err := svc.End(ctx, quiz.ID, "staff-1"); !errors.Is(err, ErrQuizEnded) {
		t.Fatalf("expected ErrQuizEnded on double end, got %v", err)
	}
}
