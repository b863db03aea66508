package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloo-solutions/doctalk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubAnswerer struct {
	result *AnswerResult
	err    error

	calls     int
	lastInput AnswerInput
}

func (a *stubAnswerer) Answer(ctx context.Context, input AnswerInput) (*AnswerResult, error) {
	a.calls++
	a.lastInput = input
	if a.err != nil {
		return nil, a.err
	}
	return a.result, nil
}

func newChatFixture(answerer AnswererInterface) (*ChatService, *MockSessionRepository, *MockSessionRepository, *testTxRunner) {
	repo := new(MockSessionRepository)
	txRepo := new(MockSessionRepository)
	tx := &testTxRunner{repos: &testTxRepos{sessions: txRepo}}
	svc := NewChatService(repo, answerer, tx)
	return svc, repo, txRepo, tx
}

func TestChatService_CreateSessionDefaultsTitle(t *testing.T) {
	svc, repo, _, _ := newChatFixture(nil)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(s *domain.Session) bool {
		return s.Title == domain.DefaultSessionTitle
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Session).ID = 1
	}).Return(nil)

	session, err := svc.CreateSession(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSessionTitle, session.Title)
	assert.Equal(t, int64(1), session.ID)
	repo.AssertExpectations(t)
}

func TestChatService_CreateSessionKeepsGivenTitle(t *testing.T) {
	svc, repo, _, _ := newChatFixture(nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	session, err := svc.CreateSession(context.Background(), "Reactor maintenance")
	require.NoError(t, err)
	assert.Equal(t, "Reactor maintenance", session.Title)
}

func TestChatService_EnsureDefaultSession(t *testing.T) {
	t.Run("creates when empty", func(t *testing.T) {
		svc, repo, _, _ := newChatFixture(nil)
		repo.On("Count", mock.Anything).Return(int64(0), nil)
		repo.On("Create", mock.Anything, mock.Anything).Return(nil)

		session, err := svc.EnsureDefaultSession(context.Background())
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, domain.DefaultSessionTitle, session.Title)
	})

	t.Run("no-op when sessions exist", func(t *testing.T) {
		svc, repo, _, _ := newChatFixture(nil)
		repo.On("Count", mock.Anything).Return(int64(3), nil)

		session, err := svc.EnsureDefaultSession(context.Background())
		require.NoError(t, err)
		assert.Nil(t, session)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestChatService_ListSessionsRejectsBadCursor(t *testing.T) {
	svc, _, _, _ := newChatFixture(nil)

	_, err := svc.ListSessions(context.Background(), "!!!not-base64!!!", 10)
	assert.ErrorIs(t, err, domain.ErrInvalidCursor)
}

func TestChatService_ListSessionsUsesDefaultPageSize(t *testing.T) {
	svc, repo, _, _ := newChatFixture(nil)
	page := &SessionPageResult{Items: []*domain.Session{{ID: 2, Title: "b"}, {ID: 1, Title: "a"}}}
	repo.On("ListWithCursor", mock.Anything, mock.Anything, 20).Return(page, nil)

	got, err := svc.ListSessions(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Len(t, got.Items, 2)
}

func TestChatService_DeleteSessionIdempotent(t *testing.T) {
	svc, repo, _, _ := newChatFixture(nil)
	repo.On("Delete", mock.Anything, int64(42)).Return(nil)

	require.NoError(t, svc.DeleteSession(context.Background(), 42))
	require.NoError(t, svc.DeleteSession(context.Background(), 42))
	repo.AssertNumberOfCalls(t, "Delete", 2)
}

func TestChatService_GetHistoryUnknownSession(t *testing.T) {
	svc, repo, _, _ := newChatFixture(nil)
	repo.On("GetByID", mock.Anything, int64(99)).Return(nil, domain.ErrSessionNotFound)

	_, err := svc.GetHistory(context.Background(), 99)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestChatService_GetHistoryChronological(t *testing.T) {
	svc, repo, _, _ := newChatFixture(nil)
	messages := []*domain.Message{
		{ID: 1, SessionID: 7, Role: domain.RoleUser, Content: "q1"},
		{ID: 2, SessionID: 7, Role: domain.RoleAssistant, Content: "a1"},
	}
	repo.On("GetByID", mock.Anything, int64(7)).Return(&domain.Session{ID: 7}, nil)
	repo.On("LoadHistory", mock.Anything, int64(7)).Return(messages, nil)

	got, err := svc.GetHistory(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
}

func TestChatService_AskPersistsTurnPair(t *testing.T) {
	sources := []domain.SourceRef{{Source: "doc.pdf", Page: 3, Excerpt: "Paris."}}
	answerer := &stubAnswerer{result: &AnswerResult{
		Answer:  "Paris is the capital.",
		Sources: sources,
		Query:   "capital of France",
	}}
	svc, repo, txRepo, tx := newChatFixture(answerer)

	repo.On("GetByID", mock.Anything, int64(5)).Return(&domain.Session{ID: 5}, nil)
	repo.On("LoadHistory", mock.Anything, int64(5)).Return([]*domain.Message{}, nil)

	var appended []*domain.Message
	txRepo.On("AppendMessage", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		appended = append(appended, args.Get(1).(*domain.Message))
	}).Return(nil).Twice()

	result, err := svc.Ask(context.Background(), 5, "What is the capital of France?")
	require.NoError(t, err)

	assert.True(t, tx.called)
	require.Len(t, appended, 2)
	assert.Equal(t, domain.RoleUser, appended[0].Role)
	assert.Equal(t, "What is the capital of France?", appended[0].Content)
	assert.Nil(t, appended[0].Metadata)
	assert.Equal(t, domain.RoleAssistant, appended[1].Role)
	assert.Equal(t, "Paris is the capital.", appended[1].Content)
	require.NotNil(t, appended[1].Metadata)
	assert.Equal(t, sources, appended[1].Metadata.Sources)

	assert.Equal(t, "capital of France", result.Query)
	assert.Equal(t, sources, result.Sources)
	txRepo.AssertExpectations(t)
}

func TestChatService_AskFeedsRecentHistoryToAnswerer(t *testing.T) {
	answerer := &stubAnswerer{result: &AnswerResult{Answer: "ok"}}
	svc, repo, txRepo, _ := newChatFixture(answerer)

	var messages []*domain.Message
	for i := 0; i < 8; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		messages = append(messages, &domain.Message{ID: int64(i + 1), SessionID: 5, Role: role, Content: "turn", Timestamp: time.Now()})
	}
	repo.On("GetByID", mock.Anything, int64(5)).Return(&domain.Session{ID: 5}, nil)
	repo.On("LoadHistory", mock.Anything, int64(5)).Return(messages, nil)
	txRepo.On("AppendMessage", mock.Anything, mock.Anything).Return(nil)

	_, err := svc.Ask(context.Background(), 5, "next question")
	require.NoError(t, err)

	assert.Len(t, answerer.lastInput.History, 5)
}

func TestChatService_AskGenerationFailureWritesNothing(t *testing.T) {
	answerer := &stubAnswerer{err: domain.NewGenerationError(errors.New("model unavailable"))}
	svc, repo, txRepo, tx := newChatFixture(answerer)

	repo.On("GetByID", mock.Anything, int64(5)).Return(&domain.Session{ID: 5}, nil)
	repo.On("LoadHistory", mock.Anything, int64(5)).Return([]*domain.Message{}, nil)

	_, err := svc.Ask(context.Background(), 5, "question")
	assert.ErrorIs(t, err, domain.ErrGenerationFailed)
	assert.False(t, tx.called)
	txRepo.AssertNotCalled(t, "AppendMessage", mock.Anything, mock.Anything)
}

func TestChatService_AskUnknownSession(t *testing.T) {
	answerer := &stubAnswerer{result: &AnswerResult{Answer: "ok"}}
	svc, repo, _, _ := newChatFixture(answerer)
	repo.On("GetByID", mock.Anything, int64(404)).Return(nil, domain.ErrSessionNotFound)

	_, err := svc.Ask(context.Background(), 404, "question")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.Zero(t, answerer.calls)
}

func TestChatService_AskEmptyQuestion(t *testing.T) {
	svc, _, _, _ := newChatFixture(&stubAnswerer{})

	_, err := svc.Ask(context.Background(), 1, "  \n ")
	assert.ErrorIs(t, err, domain.ErrEmptyQuestion)
}

func TestChatService_RecordMessageValidatesRole(t *testing.T) {
	svc, _, _, _ := newChatFixture(nil)

	_, err := svc.RecordMessage(context.Background(), 1, "narrator", "once upon a time", nil)
	require.Error(t, err)
}
