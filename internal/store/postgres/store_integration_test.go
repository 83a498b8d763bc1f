//go:build integration

package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/wolfeidau/payroll/internal/models"
	"github.com/wolfeidau/payroll/internal/store"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) (*pgxpool.Pool, func()) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	pool, err := NewPool(ctx, &PoolConfig{
		ConnString:  fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MinConns:    1,
		AutoMigrate: true,
	})
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}

	return pool, cleanup
}

func TestIntegration_OwnerStore(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	owners := NewOwnerStore(pool)

	t.Run("insert then get", func(t *testing.T) {
		owner, created, err := owners.InsertOwnerIfAbsent(ctx, &models.Owner{
			Name:           "alice",
			CredentialHash: models.PlaceholderCredential,
			Roles:          []string{models.RoleManager},
		})
		require.NoError(t, err)
		require.True(t, created)
		require.NotEqual(t, uuid.Nil, owner.OwnerID)

		got, err := owners.GetOwnerByName(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, owner.OwnerID, got.OwnerID)
		require.Equal(t, []string{models.RoleManager}, got.Roles)
	})

	t.Run("unknown owner", func(t *testing.T) {
		_, err := owners.GetOwnerByName(ctx, "nobody")
		require.ErrorIs(t, err, store.ErrOwnerNotFound)
	})

	t.Run("concurrent inserts create one owner", func(t *testing.T) {
		const workers = 16

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			ids     = map[uuid.UUID]struct{}{}
			created int
			errs    []error
		)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				owner, ok, err := owners.InsertOwnerIfAbsent(ctx, &models.Owner{
					Name:           "carol",
					CredentialHash: models.PlaceholderCredential,
					Roles:          []string{models.RoleManager},
				})
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
					return
				}
				ids[owner.OwnerID] = struct{}{}
				if ok {
					created++
				}
			}()
		}
		wg.Wait()

		require.Empty(t, errs)
		require.Equal(t, 1, created)
		require.Len(t, ids, 1)
	})

	t.Run("put owner replaces credential", func(t *testing.T) {
		_, err := owners.PutOwner(ctx, &models.Owner{
			Name:           "alice",
			CredentialHash: "hash",
			Roles:          []string{},
		})
		require.NoError(t, err)

		got, err := owners.GetOwnerByName(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, "hash", got.CredentialHash)
		require.Empty(t, got.Roles)
	})
}

func TestIntegration_EmployeeStore(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	owners := NewOwnerStore(pool)
	employees := NewEmployeeStore(pool)

	owner, _, err := owners.InsertOwnerIfAbsent(ctx, &models.Owner{
		Name:           "bob",
		CredentialHash: models.PlaceholderCredential,
		Roles:          []string{models.RoleManager},
	})
	require.NoError(t, err)

	var employeeID uuid.UUID

	t.Run("insert employee", func(t *testing.T) {
		e, err := employees.InsertEmployee(ctx, &models.Employee{
			FirstName:   "Frodo",
			LastName:    "Baggins",
			Description: "ring bearer",
			Owner:       owner,
		})
		require.NoError(t, err)
		require.Equal(t, int64(0), e.Revision)
		require.Equal(t, "bob", e.OwnerName())
		employeeID = e.EmployeeID
	})

	t.Run("insert with unknown owner", func(t *testing.T) {
		_, err := employees.InsertEmployee(ctx, &models.Employee{
			FirstName: "Sam",
			LastName:  "Gamgee",
			Owner:     &models.Owner{OwnerID: uuid.Must(uuid.NewV7()), Name: "ghost"},
		})
		require.ErrorIs(t, err, store.ErrOwnerNotFound)
	})

	t.Run("update with matching revision", func(t *testing.T) {
		e, err := employees.UpdateEmployeeIfRevision(ctx, &models.Employee{
			EmployeeID:  employeeID,
			FirstName:   "Frodo",
			LastName:    "Baggins",
			Description: "gardener",
		}, 0)
		require.NoError(t, err)
		require.Equal(t, int64(1), e.Revision)
		require.Equal(t, "gardener", e.Description)
		require.Equal(t, "bob", e.OwnerName())
	})

	t.Run("update with stale revision", func(t *testing.T) {
		_, err := employees.UpdateEmployeeIfRevision(ctx, &models.Employee{
			EmployeeID: employeeID,
			FirstName:  "Frodo",
			LastName:   "Baggins",
		}, 0)
		require.ErrorIs(t, err, store.ErrRevisionConflict)
	})

	t.Run("update missing employee", func(t *testing.T) {
		_, err := employees.UpdateEmployeeIfRevision(ctx, &models.Employee{
			EmployeeID: uuid.Must(uuid.NewV7()),
		}, 0)
		require.ErrorIs(t, err, store.ErrEmployeeNotFound)
	})

	t.Run("list employees", func(t *testing.T) {
		list, total, err := employees.ListEmployees(ctx, store.ListEmployeesOptions{Limit: 10})
		require.NoError(t, err)
		require.Equal(t, 1, total)
		require.Len(t, list, 1)
		require.Equal(t, employeeID, list[0].EmployeeID)
	})

	t.Run("delete employee", func(t *testing.T) {
		require.NoError(t, employees.DeleteEmployee(ctx, employeeID))

		_, err := employees.GetEmployee(ctx, employeeID)
		require.ErrorIs(t, err, store.ErrEmployeeNotFound)

		err = employees.DeleteEmployee(ctx, employeeID)
		require.ErrorIs(t, err, store.ErrEmployeeNotFound)
	})
}
