// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StudentDiary Contributors

//go:build integration

package postgres_test

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/studentdiary/diary/internal/auth"
	"github.com/studentdiary/diary/internal/auth/postgres"
)

var _ = Describe("UserRepository", func() {
	var (
		repo *postgres.UserRepository
		now  time.Time
	)

	BeforeEach(func(ctx context.Context) {
		truncate(ctx)
		repo = postgres.NewUserRepository(testPool)
		now = time.Now().UTC().Truncate(time.Microsecond)
	})

	create := func(ctx context.Context, username, email string) *auth.User {
		u, err := auth.NewUser(username, email, "digest", now)
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.Create(ctx, u)).To(Succeed())
		return u
	}

	Describe("Create", func() {
		It("assigns an id and the first version", func(ctx context.Context) {
			u := create(ctx, "alice", "alice@x.com")
			Expect(u.ID).To(BeNumerically(">", 0))
			Expect(u.Version).To(Equal(int64(1)))

			stored, err := repo.GetByID(ctx, u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Username).To(Equal("alice"))
			Expect(stored.CreatedAt).To(BeTemporally("==", now))
			Expect(stored.LockoutEnd).To(BeNil())
			Expect(stored.ResetTokenHash).To(BeNil())
		})

		It("rejects usernames and emails differing only in case", func(ctx context.Context) {
			create(ctx, "alice", "alice@x.com")

			u, _ := auth.NewUser("ALICE", "other@x.com", "digest", now)
			Expect(repo.Create(ctx, u)).To(MatchError(auth.ErrDuplicate))

			u, _ = auth.NewUser("other", "Alice@X.com", "digest", now)
			Expect(repo.Create(ctx, u)).To(MatchError(auth.ErrDuplicate))
		})
	})

	Describe("lookups", func() {
		It("finds users case-insensitively", func(ctx context.Context) {
			u := create(ctx, "alice", "alice@x.com")

			byName, err := repo.GetByUsername(ctx, "Alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(byName.ID).To(Equal(u.ID))

			byEmail, err := repo.GetByEmail(ctx, "ALICE@x.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(byEmail.ID).To(Equal(u.ID))
		})

		It("reports missing users as not found", func(ctx context.Context) {
			_, err := repo.GetByUsername(ctx, "ghost")
			Expect(err).To(MatchError(auth.ErrNotFound))
			_, err = repo.GetByID(ctx, 999)
			Expect(err).To(MatchError(auth.ErrNotFound))
		})

		It("checks email ownership excluding the caller", func(ctx context.Context) {
			alice := create(ctx, "alice", "alice@x.com")
			bob := create(ctx, "bob", "bob@x.com")

			taken, err := repo.EmailTaken(ctx, "ALICE@x.com", bob.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(taken).To(BeTrue())

			taken, err = repo.EmailTaken(ctx, "alice@x.com", alice.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(taken).To(BeFalse())
		})
	})

	Describe("Save", func() {
		It("round-trips security fields", func(ctx context.Context) {
			u := create(ctx, "alice", "alice@x.com")
			u.RecordFailure(now)
			u.RecordFailure(now)
			u.RecordFailure(now)
			u.SetResetToken(auth.HashResetToken("tok"), now.Add(auth.ResetTokenTTL))
			Expect(repo.Save(ctx, u)).To(Succeed())
			Expect(u.Version).To(Equal(int64(2)))

			stored, err := repo.GetByResetTokenHash(ctx, auth.HashResetToken("tok"))
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.ID).To(Equal(u.ID))
			Expect(stored.FailedLoginAttempts).To(BeZero())
			Expect(stored.LockoutEnd).NotTo(BeNil())
			Expect(*stored.LockoutEnd).To(BeTemporally("==", now.Add(auth.LockoutDuration)))
			Expect(*stored.ResetTokenExpiry).To(BeTemporally("==", now.Add(auth.ResetTokenTTL)))
		})

		It("rejects a stale copy", func(ctx context.Context) {
			u := create(ctx, "alice", "alice@x.com")
			stale := *u

			u.FirstName = "Alice"
			Expect(repo.Save(ctx, u)).To(Succeed())

			stale.LastName = "Liddell"
			Expect(repo.Save(ctx, &stale)).To(MatchError(auth.ErrConflict))
		})

		It("rejects an email owned by another user", func(ctx context.Context) {
			create(ctx, "alice", "alice@x.com")
			bob := create(ctx, "bob", "bob@x.com")

			bob.Email = "ALICE@x.com"
			Expect(repo.Save(ctx, bob)).To(MatchError(auth.ErrDuplicate))
		})
	})

	Describe("with the auth service", func() {
		It("locks an account under concurrent failures", func(ctx context.Context) {
			hasher, err := auth.NewArgon2idHasher(auth.Argon2Params{
				Memory: 8 * 1024, Time: 1, Threads: 1, SaltLength: 16, KeyLength: 32,
			})
			Expect(err).NotTo(HaveOccurred())
			svc, err := auth.NewService(repo, hasher,
				auth.WithClock(clockwork.NewFakeClockAt(now)),
				auth.WithLogger(slog.New(slog.DiscardHandler)),
			)
			Expect(err).NotTo(HaveOccurred())

			res, err := svc.Register(ctx, auth.RegisterRequest{
				Username: "alice", Email: "alice@x.com", Password: "Secret123", ConfirmPassword: "Secret123",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.OK).To(BeTrue())

			var wg sync.WaitGroup
			for range auth.LockoutThreshold {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, loginErr := svc.Login(ctx, "alice", "wrong")
					Expect(loginErr).NotTo(HaveOccurred())
				}()
			}
			wg.Wait()

			stored, err := repo.GetByUsername(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.IsLocked(now)).To(BeTrue())
		})
	})
})
