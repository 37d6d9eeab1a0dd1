package services_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/mudler/voxlog/core/config"
	"github.com/mudler/voxlog/core/schema"
	. "github.com/mudler/voxlog/core/services"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("RetentionService", func() {
	var (
		dir string
		now = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	mkSession := func(started time.Time) string {
		folder := schema.SessionFolder(dir, started)
		Expect(os.MkdirAll(folder, 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(folder, schema.TranscriptName), []byte("x"), 0o644)).To(Succeed())
		return folder
	}

	It("removes only expired session folders", func() {
		old := mkSession(now.Add(-8 * 24 * time.Hour))
		recent := mkSession(now.Add(-2 * 24 * time.Hour))
		unrelated := filepath.Join(dir, "keep-me")
		Expect(os.MkdirAll(unrelated, 0o755)).To(Succeed())

		svc := NewRetentionService(config.NewApplicationConfig(
			config.WithRecordingsDir(dir),
			config.WithRetentionDays(7),
		))
		removed, err := svc.Sweep(now)
		Expect(err).ToNot(HaveOccurred())
		Expect(removed).To(ConsistOf(old))
		Expect(old).ToNot(BeADirectory())
		Expect(recent).To(BeADirectory())
		Expect(unrelated).To(BeADirectory())
	})

	It("tolerates a missing recordings directory", func() {
		svc := NewRetentionService(config.NewApplicationConfig(
			config.WithRecordingsDir(filepath.Join(dir, "absent")),
			config.WithRetentionDays(1),
		))
		removed, err := svc.Sweep(now)
		Expect(err).ToNot(HaveOccurred())
		Expect(removed).To(BeEmpty())
	})

	It("does not schedule anything when disabled", func() {
		svc := NewRetentionService(config.NewApplicationConfig(config.WithRecordingsDir(dir)))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		Expect(svc.Start(ctx)).To(Succeed())
	})
})
