package retry_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"ragcore/internal/domain"
	"ragcore/internal/retry"
)

var fast = retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

var _ = Describe("Do", func() {
	It("returns at once on success", func() {
		calls := 0
		err := retry.Do(context.Background(), fast, func(context.Context) error {
			calls++
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(1))
	})

	It("retries rate limits until success", func() {
		calls := 0
		err := retry.Do(context.Background(), fast, func(context.Context) error {
			calls++
			if calls < 3 {
				return fmt.Errorf("embedding: %w", domain.ErrRateLimited)
			}
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(3))
	})

	It("gives up after the last attempt", func() {
		calls := 0
		err := retry.Do(context.Background(), fast, func(context.Context) error {
			calls++
			return &domain.ProviderError{Kind: domain.ErrEmbeddingUnavailable, Transient: true}
		})
		Expect(err).To(MatchError(domain.ErrEmbeddingUnavailable))
		Expect(calls).To(Equal(3))
	})

	It("does not retry fatal errors", func() {
		calls := 0
		err := retry.Do(context.Background(), fast, func(context.Context) error {
			calls++
			return domain.ErrEmbeddingUnavailable
		})
		Expect(err).To(MatchError(domain.ErrEmbeddingUnavailable))
		Expect(calls).To(Equal(1))
	})

	It("stops waiting when the context ends", func() {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		slow := retry.Policy{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}
		err := retry.Do(ctx, slow, func(context.Context) error {
			calls++
			cancel()
			return domain.ErrRateLimited
		})
		Expect(errors.Is(err, domain.ErrRateLimited)).To(BeTrue())
		Expect(calls).To(Equal(1))
	})

	It("calls at least once with a zero policy", func() {
		calls := 0
		_ = retry.Do(context.Background(), retry.Policy{}, func(context.Context) error {
			calls++
			return domain.ErrRateLimited
		})
		Expect(calls).To(Equal(1))
	})
})

var _ = Describe("Policy.Delay", func() {
	p := retry.Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}

	It("backs off exponentially up to the cap", func() {
		Expect(p.Delay(0, domain.ErrRateLimited)).To(Equal(100 * time.Millisecond))
		Expect(p.Delay(2, domain.ErrRateLimited)).To(Equal(400 * time.Millisecond))
		Expect(p.Delay(10, domain.ErrRateLimited)).To(Equal(time.Second))
	})

	It("prefers the provider's Retry-After", func() {
		err := &domain.ProviderError{Kind: domain.ErrRateLimited, RetryAfter: 300 * time.Millisecond}
		Expect(p.Delay(3, err)).To(Equal(300 * time.Millisecond))
		err.RetryAfter = time.Minute
		Expect(p.Delay(0, err)).To(Equal(time.Second))
	})

	It("has sane defaults", func() {
		d := retry.DefaultPolicy()
		Expect(d.MaxAttempts).To(Equal(4))
		Expect(d.Delay(0, domain.ErrRateLimited)).To(Equal(200 * time.Millisecond))
	})
})
