package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/bible_search_server/internal/model"
	"github.com/qs3c/bible_search_server/internal/testutil"
)

func TestTransactionRepository_CreateIfAbsent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewTransactionRepository(db)
	ctx := context.Background()
	user := testutil.TestUser(t, db)

	require.NoError(t, repo.CreateIfAbsent(ctx, &model.Transaction{
		UserID: user.ID, Amount: 5, Currency: "USD", Credits: 10, SessionID: "cs_1", Status: model.TransactionPending,
	}))
	require.NoError(t, repo.CreateIfAbsent(ctx, &model.Transaction{
		UserID: user.ID, Amount: 9, Currency: "USD", Credits: 20, SessionID: "cs_1", Status: model.TransactionPending,
	}))

	found, err := repo.GetBySessionID(ctx, "cs_1")
	require.NoError(t, err)
	assert.Equal(t, 10, found.Credits)

	var count int64
	db.Model(&model.Transaction{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestTransactionRepository_ListByUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewTransactionRepository(db)
	user := testutil.TestUser(t, db)
	other := testutil.TestUser(t, db)
	testutil.TestTransaction(t, db, user.ID, "cs_a", model.TransactionPending)
	testutil.TestTransaction(t, db, user.ID, "cs_b", model.TransactionSucceeded)
	testutil.TestTransaction(t, db, other.ID, "cs_c", model.TransactionPending)

	txs, err := repo.ListByUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "cs_b", txs[0].SessionID)
}

func TestTransactionRepository_Transition(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewTransactionRepository(db)
	ctx := context.Background()
	user := testutil.TestUser(t, db)
	testutil.TestTransaction(t, db, user.ID, "cs_1", model.TransactionSucceeded)

	changed, err := repo.Transition(ctx, "cs_1", model.TransactionCanceled, model.TransactionPending)
	require.NoError(t, err)
	assert.False(t, changed)

	testutil.TestTransaction(t, db, user.ID, "cs_2", model.TransactionPending)
	changed, err = repo.Transition(ctx, "cs_2", model.TransactionFailed, model.TransactionPending)
	require.NoError(t, err)
	assert.True(t, changed)

	found, err := repo.GetBySessionID(ctx, "cs_2")
	require.NoError(t, err)
	assert.Equal(t, model.TransactionFailed, found.Status)
}

func TestTransactionRepository_TransitionForUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewTransactionRepository(db)
	ctx := context.Background()
	owner := testutil.TestUser(t, db)
	other := testutil.TestUser(t, db)
	testutil.TestTransaction(t, db, owner.ID, "cs_1", model.TransactionPending)

	changed, err := repo.TransitionForUser(ctx, "cs_1", other.ID, model.TransactionCanceled, model.TransactionPending)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = repo.TransitionForUser(ctx, "cs_1", owner.ID, model.TransactionCanceled, model.TransactionPending)
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestTransactionRepository_CompleteAndCredit_ExactlyOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewTransactionRepository(db)
	ctx := context.Background()
	user := testutil.TestUser(t, db, testutil.WithCredits(1))
	testutil.TestTransaction(t, db, user.ID, "cs_1", model.TransactionPending)

	record := &model.Transaction{UserID: user.ID, Amount: 5, Currency: "USD", Credits: 10, SessionID: "cs_1"}

	credited, err := repo.CompleteAndCredit(ctx, record)
	require.NoError(t, err)
	assert.True(t, credited)

	credited, err = repo.CompleteAndCredit(ctx, record)
	require.NoError(t, err)
	assert.False(t, credited)

	found, err := NewUserRepository(db).GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 11, found.Credits)

	tx, err := repo.GetBySessionID(ctx, "cs_1")
	require.NoError(t, err)
	assert.Equal(t, model.TransactionSucceeded, tx.Status)
}

func TestTransactionRepository_CompleteAndCredit_UnknownSession(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewTransactionRepository(db)
	ctx := context.Background()
	user := testutil.TestUser(t, db, testutil.WithCredits(0))

	credited, err := repo.CompleteAndCredit(ctx, &model.Transaction{
		UserID: user.ID, Amount: 12.5, Currency: "EUR", Credits: 25, SessionID: "cs_new",
	})
	require.NoError(t, err)
	assert.True(t, credited)

	tx, err := repo.GetBySessionID(ctx, "cs_new")
	require.NoError(t, err)
	assert.Equal(t, model.TransactionSucceeded, tx.Status)
	assert.Equal(t, 12.5, tx.Amount)
	assert.Equal(t, "EUR", tx.Currency)

	found, err := NewUserRepository(db).GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, found.Credits)
}

func TestTransactionRepository_CompleteAndCredit_AfterCancel(t *testing.T) {
	tests := []struct {
		name     string
		cancel   func(repo *TransactionRepository, userID int64) (bool, error)
		by       string
		credited bool
		status   string
	}{
		{
			name: "owner cancel is still completed",
			cancel: func(repo *TransactionRepository, userID int64) (bool, error) {
				return repo.TransitionForUser(context.Background(), "cs_1", userID, model.TransactionCanceled, model.TransactionPending)
			},
			by:       model.CanceledByOwner,
			credited: true,
			status:   model.TransactionSucceeded,
		},
		{
			name: "processor expiry is final",
			cancel: func(repo *TransactionRepository, _ int64) (bool, error) {
				return repo.Transition(context.Background(), "cs_1", model.TransactionCanceled, model.TransactionPending)
			},
			by:       model.CanceledByProcessor,
			credited: false,
			status:   model.TransactionCanceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			defer testutil.CleanupTestDB(t, db)

			repo := NewTransactionRepository(db)
			user := testutil.TestUser(t, db, testutil.WithCredits(0))
			testutil.TestTransaction(t, db, user.ID, "cs_1", model.TransactionPending)

			changed, err := tt.cancel(repo, user.ID)
			require.NoError(t, err)
			require.True(t, changed)

			stored, err := repo.GetBySessionID(context.Background(), "cs_1")
			require.NoError(t, err)
			assert.Equal(t, tt.by, stored.CanceledBy)

			credited, err := repo.CompleteAndCredit(context.Background(), &model.Transaction{UserID: user.ID, Amount: 5, Currency: "USD", Credits: 10, SessionID: "cs_1"})
			require.NoError(t, err)
			assert.Equal(t, tt.credited, credited)

			stored, err = repo.GetBySessionID(context.Background(), "cs_1")
			require.NoError(t, err)
			assert.Equal(t, tt.status, stored.Status)

			var after model.User
			require.NoError(t, db.First(&after, user.ID).Error)
			if tt.credited {
				assert.Equal(t, 10, after.Credits)
			} else {
				assert.Zero(t, after.Credits)
			}
		})
	}
}

func TestTransactionRepository_CompleteAndCredit_MissingUserRollsBack(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewTransactionRepository(db)
	ctx := context.Background()

	_, err := repo.CompleteAndCredit(ctx, &model.Transaction{UserID: 99999, Amount: 5, Currency: "USD", Credits: 10, SessionID: "cs_orphan"})
	require.Error(t, err)

	var count int64
	db.Model(&model.Transaction{}).Count(&count)
	assert.Zero(t, count)
}
