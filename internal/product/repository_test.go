package product

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func productRows(ids ...uuid.UUID) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "name", "description", "price", "stock", "image_url", "created_at", "updated_at",
	})
	for i, id := range ids {
		rows.AddRow(id, "Linen Shirt", nil, int64(2500+i), 10, nil, time.Now(), time.Now())
	}
	return rows
}

func TestRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	id := uuid.New()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, name, description, price, stock, image_url, created_at, updated_at FROM products WHERE id = \$1`).
			WithArgs(id).
			WillReturnRows(productRows(id))

		p, err := repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, p.ID)
		assert.Equal(t, "Linen Shirt", p.Name)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM products WHERE id = \$1`).
			WithArgs(id).
			WillReturnRows(productRows())

		_, err := repo.GetByID(context.Background(), id)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM products`).
			WillReturnError(errors.New("db error"))

		_, err := repo.GetByID(context.Background(), id)
		assert.Error(t, err)
	})
}

func TestRepository_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM products WHERE 1=1 ORDER BY created_at DESC LIMIT \$1 OFFSET \$2`).
			WithArgs(int32(20), int32(0)).
			WillReturnRows(productRows(uuid.New(), uuid.New()))

		products, err := repo.List(context.Background(), ListOptions{Limit: 20, Page: 1})
		require.NoError(t, err)
		assert.Len(t, products, 2)
	})

	t.Run("WithSearch", func(t *testing.T) {
		search := "shirt"
		mock.ExpectQuery(`SELECT .* FROM products WHERE 1=1 AND name ILIKE \$1 ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
			WithArgs("%shirt%", int32(10), int32(10)).
			WillReturnRows(productRows(uuid.New()))

		products, err := repo.List(context.Background(), ListOptions{Limit: 10, Page: 2, Search: &search})
		require.NoError(t, err)
		assert.Len(t, products, 1)
	})
}

func TestRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	p := &Product{ID: uuid.New(), Name: "Denim Jacket", Price: 8900, Stock: 15}

	mock.ExpectExec(`INSERT INTO products`).
		WithArgs(p.ID, p.Name, nil, p.Price, p.Stock, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_SetStock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	id := uuid.New()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(`UPDATE products SET stock = \$2, updated_at = NOW\(\) WHERE id = \$1`).
			WithArgs(id, 42).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.SetStock(context.Background(), id, 42))
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectExec(`UPDATE products SET stock = \$2`).
			WithArgs(id, 42).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.SetStock(context.Background(), id, 42), ErrNotFound)
	})
}
