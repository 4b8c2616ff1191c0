package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/classroom-connect/quiz-service/internal/analyzer"
	"github.com/classroom-connect/quiz-service/internal/models"
	"github.com/classroom-connect/quiz-service/internal/repositories"
)

// fakeRepository is an in-memory repositories.Repository for service tests.
type fakeRepository struct {
	mu sync.Mutex

	quizzes  map[uint]*models.Quiz
	attempts map[uint]*models.QuizAttempt
	answers  map[uint]*models.QuizAnswer
	users    map[string]*models.User

	nextQuizID     uint
	nextQuestionID uint
	nextChoiceID   uint
	nextAttemptID  uint
	nextAnswerID   uint
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		quizzes:  make(map[uint]*models.Quiz),
		attempts: make(map[uint]*models.QuizAttempt),
		answers:  make(map[uint]*models.QuizAnswer),
		users:    make(map[string]*models.User),
	}
}

func (r *fakeRepository) Quiz() repositories.QuizRepository         { return &fakeQuizRepo{r} }
func (r *fakeRepository) Question() repositories.QuestionRepository { return &fakeQuestionRepo{r} }
func (r *fakeRepository) Attempt() repositories.AttemptRepository   { return &fakeAttemptRepo{r} }
func (r *fakeRepository) Answer() repositories.AnswerRepository     { return &fakeAnswerRepo{r} }
func (r *fakeRepository) User() repositories.UserRepository         { return &fakeUserRepo{r} }

func (r *fakeRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(r)
}

func (r *fakeRepository) Ping(ctx context.Context) error { return nil }
func (r *fakeRepository) Close() error                   { return nil }

// addQuiz seeds a quiz with assigned question and choice ids.
func (r *fakeRepository) addQuiz(quiz *models.Quiz) *models.Quiz {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextQuizID++
	quiz.ID = r.nextQuizID
	for i := range quiz.Questions {
		r.nextQuestionID++
		quiz.Questions[i].ID = r.nextQuestionID
		quiz.Questions[i].QuizID = quiz.ID
		for j := range quiz.Questions[i].Choices {
			r.nextChoiceID++
			quiz.Questions[i].Choices[j].ID = r.nextChoiceID
			quiz.Questions[i].Choices[j].QuestionID = quiz.Questions[i].ID
		}
	}
	r.quizzes[quiz.ID] = quiz
	return quiz
}

func (r *fakeRepository) addUser(user *models.User) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return user
}

func (r *fakeRepository) addAttempt(attempt *models.QuizAttempt) *models.QuizAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextAttemptID++
	attempt.ID = r.nextAttemptID
	r.attempts[attempt.ID] = attempt
	return attempt
}

// ===== QUIZ =====

type fakeQuizRepo struct{ r *fakeRepository }

func (f *fakeQuizRepo) Create(ctx context.Context, tx *gorm.DB, quiz *models.Quiz) error {
	f.r.addQuiz(quiz)
	return nil
}

func (f *fakeQuizRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	quiz, ok := f.r.quizzes[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return quiz, nil
}

func (f *fakeQuizRepo) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error) {
	return f.GetByID(ctx, tx, id)
}

func (f *fakeQuizRepo) Update(ctx context.Context, tx *gorm.DB, quiz *models.Quiz) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if _, ok := f.r.quizzes[quiz.ID]; !ok {
		return repositories.ErrNotFound
	}
	f.r.quizzes[quiz.ID] = quiz
	return nil
}

func (f *fakeQuizRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if _, ok := f.r.quizzes[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.r.quizzes, id)
	return nil
}

func (f *fakeQuizRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.QuizFilters) ([]*models.Quiz, int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.Quiz
	for _, q := range f.r.quizzes {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

// ===== QUESTION =====

type fakeQuestionRepo struct{ r *fakeRepository }

func (f *fakeQuestionRepo) CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, q := range questions {
		f.r.nextQuestionID++
		q.ID = f.r.nextQuestionID
	}
	return nil
}

func (f *fakeQuestionRepo) GetByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.Question, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	quiz, ok := f.r.quizzes[quizID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := make([]*models.Question, len(quiz.Questions))
	for i := range quiz.Questions {
		out[i] = &quiz.Questions[i]
	}
	return out, nil
}

func (f *fakeQuestionRepo) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	return nil
}

func (f *fakeQuestionRepo) DeleteByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if quiz, ok := f.r.quizzes[quizID]; ok {
		quiz.Questions = nil
	}
	return nil
}

// ===== ATTEMPT =====

type fakeAttemptRepo struct{ r *fakeRepository }

func (f *fakeAttemptRepo) Create(ctx context.Context, tx *gorm.DB, attempt *models.QuizAttempt) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	// Mirrors the (quiz_id, user_id) unique index: completed rows block
	// inserts too, retakes must reuse the existing row.
	for _, existing := range f.r.attempts {
		if existing.QuizID == attempt.QuizID && existing.UserID == attempt.UserID {
			return repositories.ErrDuplicate
		}
	}
	f.r.nextAttemptID++
	attempt.ID = f.r.nextAttemptID
	f.r.attempts[attempt.ID] = attempt
	return nil
}

func (f *fakeAttemptRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizAttempt, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	attempt, ok := f.r.attempts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return attempt, nil
}

func (f *fakeAttemptRepo) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizAttempt, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	attempt, ok := f.r.attempts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}

	if quiz, ok := f.r.quizzes[attempt.QuizID]; ok {
		attempt.Quiz = *quiz
		if creator, ok := f.r.users[quiz.CreatedBy]; ok {
			attempt.Quiz.Creator = *creator
		}
	}
	if user, ok := f.r.users[attempt.UserID]; ok {
		attempt.User = *user
	}

	attempt.Answers = nil
	var answerIDs []uint
	for answerID, answer := range f.r.answers {
		if answer.AttemptID == attempt.ID {
			answerIDs = append(answerIDs, answerID)
		}
	}
	sort.Slice(answerIDs, func(i, j int) bool { return answerIDs[i] < answerIDs[j] })
	for _, answerID := range answerIDs {
		answer := *f.r.answers[answerID]
		for i := range attempt.Quiz.Questions {
			if attempt.Quiz.Questions[i].ID == answer.QuestionID {
				answer.Question = attempt.Quiz.Questions[i]
			}
		}
		attempt.Answers = append(attempt.Answers, answer)
	}

	return attempt, nil
}

func (f *fakeAttemptRepo) GetByUserAndQuiz(ctx context.Context, tx *gorm.DB, userID string, quizID uint) (*models.QuizAttempt, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, attempt := range f.r.attempts {
		if attempt.UserID == userID && attempt.QuizID == quizID {
			return attempt, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeAttemptRepo) Update(ctx context.Context, tx *gorm.DB, attempt *models.QuizAttempt) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if _, ok := f.r.attempts[attempt.ID]; !ok {
		return repositories.ErrNotFound
	}
	f.r.attempts[attempt.ID] = attempt
	return nil
}

func (f *fakeAttemptRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.AttemptFilters) ([]*models.QuizAttempt, int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.QuizAttempt
	for _, attempt := range f.r.attempts {
		if filters.UserID != nil && attempt.UserID != *filters.UserID {
			continue
		}
		if filters.Status != nil && attempt.Status != *filters.Status {
			continue
		}
		out = append(out, attempt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (f *fakeAttemptRepo) GetByQuiz(ctx context.Context, tx *gorm.DB, quizID uint, filters repositories.AttemptFilters) ([]*models.QuizAttempt, int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.QuizAttempt
	for _, attempt := range f.r.attempts {
		if attempt.QuizID == quizID {
			out = append(out, attempt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := int64(len(out))
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, total, nil
}

func (f *fakeAttemptRepo) GetByCourse(ctx context.Context, tx *gorm.DB, courseID string) ([]*models.QuizAttempt, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.QuizAttempt
	for _, attempt := range f.r.attempts {
		quiz, ok := f.r.quizzes[attempt.QuizID]
		if !ok || quiz.CourseID == nil || *quiz.CourseID != courseID {
			continue
		}
		copied := *attempt
		copied.Quiz = *quiz
		if user, ok := f.r.users[attempt.UserID]; ok {
			copied.User = *user
		}
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeAttemptRepo) GetUnsyncedTutorialAttempts(ctx context.Context, tx *gorm.DB, limit int) ([]*models.QuizAttempt, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.QuizAttempt
	for _, attempt := range f.r.attempts {
		quiz, ok := f.r.quizzes[attempt.QuizID]
		if !ok || !quiz.IsTutorial() {
			continue
		}
		if attempt.IsCompleted() && !attempt.MarksSynced {
			out = append(out, attempt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeAttemptRepo) GetRecentlySynced(ctx context.Context, tx *gorm.DB, limit int) ([]*models.QuizAttempt, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.QuizAttempt
	for _, attempt := range f.r.attempts {
		if attempt.MarksSynced {
			out = append(out, attempt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeAttemptRepo) CountTutorialAttempts(ctx context.Context, tx *gorm.DB) (int64, int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var total, unsynced int64
	for _, attempt := range f.r.attempts {
		quiz, ok := f.r.quizzes[attempt.QuizID]
		if !ok || !quiz.IsTutorial() || !attempt.IsCompleted() {
			continue
		}
		total++
		if !attempt.MarksSynced {
			unsynced++
		}
	}
	return total, unsynced, nil
}

func (f *fakeAttemptRepo) GetCourseSyncStats(ctx context.Context, tx *gorm.DB) ([]repositories.CourseSyncStats, error) {
	return nil, nil
}

func (f *fakeAttemptRepo) MarkSynced(ctx context.Context, tx *gorm.DB, attemptID uint, at time.Time) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	attempt, ok := f.r.attempts[attemptID]
	if !ok {
		return repositories.ErrNotFound
	}
	attempt.MarksSynced = true
	attempt.LastSyncAt = &at
	return nil
}

// ===== ANSWER =====

type fakeAnswerRepo struct{ r *fakeRepository }

func (f *fakeAnswerRepo) CreateBatch(ctx context.Context, tx *gorm.DB, answers []*models.QuizAnswer) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, answer := range answers {
		f.r.nextAnswerID++
		answer.ID = f.r.nextAnswerID
		f.r.answers[answer.ID] = answer
	}
	return nil
}

func (f *fakeAnswerRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizAnswer, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	answer, ok := f.r.answers[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return answer, nil
}

func (f *fakeAnswerRepo) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizAnswer, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	answer, ok := f.r.answers[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	if attempt, ok := f.r.attempts[answer.AttemptID]; ok {
		if quiz, ok := f.r.quizzes[attempt.QuizID]; ok {
			for i := range quiz.Questions {
				if quiz.Questions[i].ID == answer.QuestionID {
					answer.Question = quiz.Questions[i]
				}
			}
		}
	}
	return answer, nil
}

func (f *fakeAnswerRepo) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.QuizAnswer, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.QuizAnswer
	for _, answer := range f.r.answers {
		if answer.AttemptID == attemptID {
			out = append(out, answer)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeAnswerRepo) Update(ctx context.Context, tx *gorm.DB, answer *models.QuizAnswer) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if _, ok := f.r.answers[answer.ID]; !ok {
		return repositories.ErrNotFound
	}
	stored := *answer
	f.r.answers[answer.ID] = &stored
	return nil
}

func (f *fakeAnswerRepo) DeleteByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for id, answer := range f.r.answers {
		if answer.AttemptID == attemptID {
			delete(f.r.answers, id)
		}
	}
	return nil
}

func (f *fakeAnswerRepo) HasPendingGrading(ctx context.Context, tx *gorm.DB, attemptID uint) (bool, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, answer := range f.r.answers {
		if answer.AttemptID == attemptID && answer.IsCorrect == nil {
			return true, nil
		}
	}
	return false, nil
}

// ===== USER =====

type fakeUserRepo struct{ r *fakeRepository }

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	user, ok := f.r.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, user := range f.r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	f.r.addUser(user)
	return nil
}

// ===== ANALYZER =====

// fakeAnalyzerClient implements analyzer.Client with overridable behavior.
type fakeAnalyzerClient struct {
	mu sync.Mutex

	courseDetailFn func(courseID string) (*analyzer.CourseDetailResponse, error)
	updateMarksFn  func(req *analyzer.UpdateMarksRequest) (*analyzer.UpdateMarksResponse, error)
	statusFn       func() (*analyzer.StatusResponse, error)

	updateRequests []*analyzer.UpdateMarksRequest
}

func (f *fakeAnalyzerClient) CourseDetail(ctx context.Context, courseID string) (*analyzer.CourseDetailResponse, error) {
	if f.courseDetailFn != nil {
		return f.courseDetailFn(courseID)
	}
	return &analyzer.CourseDetailResponse{Success: true, CourseID: courseID}, nil
}

func (f *fakeAnalyzerClient) UpdateStudentMarks(ctx context.Context, req *analyzer.UpdateMarksRequest) (*analyzer.UpdateMarksResponse, error) {
	f.mu.Lock()
	f.updateRequests = append(f.updateRequests, req)
	f.mu.Unlock()
	if f.updateMarksFn != nil {
		return f.updateMarksFn(req)
	}
	return &analyzer.UpdateMarksResponse{Success: true}, nil
}

func (f *fakeAnalyzerClient) Status(ctx context.Context) (*analyzer.StatusResponse, error) {
	if f.statusFn != nil {
		return f.statusFn()
	}
	return &analyzer.StatusResponse{Success: true}, nil
}

func (f *fakeAnalyzerClient) lastUpdateRequest() *analyzer.UpdateMarksRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updateRequests) == 0 {
		return nil
	}
	return f.updateRequests[len(f.updateRequests)-1]
}
