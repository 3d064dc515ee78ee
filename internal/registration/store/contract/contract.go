// Package contract holds behavior every ports.Store implementation must
// satisfy. Backend test suites embed Suite and supply a fresh store per test.
package contract

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"eventreg/internal/platform/logger"
	"eventreg/internal/registration/models"
	"eventreg/internal/registration/ports"
	"eventreg/internal/registration/service"
	"eventreg/pkg/platform/tx"
)

// Suite runs the store contract through the registration service so the real
// allocation path is exercised.
type Suite struct {
	suite.Suite

	// NewStore returns an empty store. Called before every test.
	NewStore func() ports.Store

	Store   ports.Store
	Service *service.Service
}

// SetupTest resets the store and service.
func (s *Suite) SetupTest() {
	s.Require().NotNil(s.NewStore, "NewStore must be set")
	s.Store = s.NewStore()
	s.Service = service.New(s.Store,
		service.WithLogger(logger.Discard()),
		service.WithRunner(tx.NewRunner(
			tx.WithMaxAttempts(100),
			tx.WithBackoff(time.Millisecond, 20*time.Millisecond),
			tx.WithTimeout(10*time.Second),
		)),
	)
}

func payload(name, birthDate string) map[string]any {
	return map[string]any{
		"name":           name,
		"birthDate":      birthDate,
		"phone":          "11 5555-0000",
		"email":          "guest@example.com",
		"attendsChurch":  "no",
		"invitedByOther": "yes",
		"invitedByWhom":  "Bruno",
		"shirtSelection": map[string]any{
			"offwhite": map[string]any{"quantidade": float64(0)},
			"marrom":   map[string]any{"quantidade": float64(2), "tamanho": "PP"},
		},
	}
}

func meta() models.SubmissionMeta {
	return models.SubmissionMeta{
		CreatedAt: time.Date(2025, 2, 3, 4, 5, 6, 789000000, time.UTC),
		SourceIP:  "198.51.100.1",
		UserAgent: "contract-test",
	}
}

func (s *Suite) register(name, birthDate string) *models.Registration {
	rec, err := s.Service.Register(context.Background(), payload(name, birthDate), meta())
	s.Require().NoError(err)
	return rec
}

func (s *Suite) TestContractSequential() {
	for i := 1; i <= 5; i++ {
		rec := s.register(fmt.Sprintf("Guest %d", i), "1990-01-01")
		s.Equal(int64(i), rec.Sequence)
	}
}

func (s *Suite) TestContractConcurrentDistinct() {
	const n = 25
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[int64]string, n)
	errs := make(chan error, n)

	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := s.Service.Register(context.Background(), payload(fmt.Sprintf("Guest %02d", i), "1990-01-01"), meta())
			if err != nil {
				errs <- err
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if prev, dup := seen[rec.Sequence]; dup {
				errs <- fmt.Errorf("sequence %d issued to %s and %s", rec.Sequence, prev, rec.ID)
				return
			}
			seen[rec.Sequence] = rec.ID
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}
	s.Len(seen, n)

	items, err := s.Service.List(context.Background(), 1000)
	s.Require().NoError(err)
	s.Len(items, n)
}

func (s *Suite) TestContractRoundTrip() {
	created := s.register("Dora Lima", "1979-11-23")

	items, err := s.Service.List(context.Background(), 10)
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	got := items[0]

	s.Equal(created.ID, got.ID)
	s.Equal(created.Sequence, got.Sequence)
	s.Equal(created.Name, got.Name)
	s.Equal(created.BirthDate, got.BirthDate)
	s.Equal(created.Phone, got.Phone)
	s.Equal(created.Email, got.Email)
	s.Equal(created.AttendsChurch, got.AttendsChurch)
	s.Nil(got.ChurchName)
	s.Equal(created.InvitedByOther, got.InvitedByOther)
	s.Equal(*created.InvitedByWhom, *got.InvitedByWhom)
	s.Equal(created.ShirtSelection, got.ShirtSelection)
	s.WithinDuration(created.CreatedAt, got.CreatedAt, time.Millisecond)
	s.Equal(*created.SourceIP, *got.SourceIP)
	s.Equal(*created.UserAgent, *got.UserAgent)
}

func (s *Suite) TestContractList() {
	for i := 0; i < 4; i++ {
		s.register(fmt.Sprintf("Guest %d", i), "1990-01-01")
	}
	items, err := s.Service.List(context.Background(), 3)
	s.Require().NoError(err)
	s.Require().Len(items, 3)
	for i, r := range items {
		s.Equal(int64(i+1), r.Sequence)
	}

	empty := s.NewStore()
	got, err := empty.ListBySequence(context.Background(), 10)
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *Suite) TestContractFindByName() {
	s.register("Maria Clara", "1990-01-01")
	s.register("maria minúscula", "1990-01-01")
	s.register("Mariana", "2002-02-02")
	s.register("Marcos", "1990-01-01")
	s.register("Maria Eduarda", "1990-01-01")

	ctx := context.Background()

	items, err := s.Service.FindByName(ctx, models.NameQuery{Prefix: "Maria", Limit: 25})
	s.Require().NoError(err)
	s.Require().Len(items, 3)
	s.Equal([]string{"Maria Clara", "Mariana", "Maria Eduarda"}, names(items))

	items, err = s.Service.FindByName(ctx, models.NameQuery{Prefix: "Maria", BirthDate: "1990-01-01", Limit: 1})
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	s.Equal("Maria Clara", items[0].Name)

	items, err = s.Service.FindByName(ctx, models.NameQuery{Prefix: "Mariana", BirthDate: "2002-02-02", Limit: 5})
	s.Require().NoError(err)
	s.Equal([]string{"Mariana"}, names(items))

	items, err = s.Service.FindByName(ctx, models.NameQuery{Prefix: "Zul", Limit: 5})
	s.Require().NoError(err)
	s.Empty(items)
}

func (s *Suite) TestContractPing() {
	s.NoError(s.Store.Ping(context.Background()))
}

func names(items []*models.Registration) []string {
	out := make([]string, len(items))
	for i, r := range items {
		out[i] = r.Name
	}
	return out
}
