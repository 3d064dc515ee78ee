//go:build integration

package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"eventreg/internal/registration/models"
	"eventreg/internal/registration/ports"
	"eventreg/internal/registration/store/contract"
	"eventreg/internal/registration/store/postgres"
	"eventreg/pkg/testutil/containers"
)

const collection = "registrations_test"

type PostgresStoreSuite struct {
	contract.Suite
	pg *containers.PostgresContainer
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.NewStore = func() ports.Store {
		err := s.pg.TruncateTables(context.Background(), "registrations", "sequence_counters")
		s.Require().NoError(err)
		return postgres.New(s.pg.Pool, collection)
	}
}

// Rows written by older releases may lack fields; reads fall back to defaults.
func (s *PostgresStoreSuite) TestLegacyDocumentDefaults() {
	ctx := context.Background()
	_, err := s.pg.Pool.Exec(ctx, `
		INSERT INTO registrations (collection, id, seq, name, birth_date, doc, created_at)
		VALUES ($1, '2b1f3c9e-8a3b-4f44-9a53-0d1d52c7e001', 9, 'Legacy', '', '{"name":"Legacy","sequence":"9","attendsChurch":"sim"}', now())`,
		collection)
	s.Require().NoError(err)

	items, err := s.Store.ListBySequence(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	s.Equal(int64(9), items[0].Sequence)
	s.Equal(models.No, items[0].AttendsChurch)
	s.Empty(items[0].Email)
	s.Nil(items[0].ShirtSelection)
}

func (s *PostgresStoreSuite) TestCounterMatchesMaxSequence() {
	ctx := context.Background()
	for range 3 {
		_, err := s.Service.Register(ctx, map[string]any{
			"name": "Counter Check", "birthDate": "1990-01-01", "phone": "1",
			"email": "c@c.io", "attendsChurch": "no", "invitedByOther": "no",
		}, models.SubmissionMeta{})
		s.Require().NoError(err)
	}

	var counter, maxSeq int64
	s.Require().NoError(s.pg.Pool.QueryRow(ctx,
		`SELECT value FROM sequence_counters WHERE name = 'registrations'`).Scan(&counter))
	s.Require().NoError(s.pg.Pool.QueryRow(ctx,
		`SELECT max(seq) FROM registrations WHERE collection = $1`, collection).Scan(&maxSeq))
	s.Equal(maxSeq, counter)
}
