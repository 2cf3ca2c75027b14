package service_test

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/memory"
	"github.com/papercomputeco/recall/pkg/service"
	"github.com/papercomputeco/recall/pkg/store/file"
	"github.com/papercomputeco/recall/pkg/store/inmemory"
)

var _ = Describe("Reconciler", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("stops within the timeout", func() {
		svc, err := service.New(ctx, service.Config{
			Store:  inmemory.NewDriver(),
			Logger: logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		reconciler := service.NewReconciler(svc, 10*time.Millisecond, logger.Nop())
		reconciler.Start()

		Expect(reconciler.Stop(time.Second)).To(Succeed())
	})

	It("flushes a retained mutation after a failed save", func() {
		flaky := &flakyStore{Driver: inmemory.NewDriver()}
		zl := logger.Nop()
		svc, err := service.New(ctx, service.Config{Store: flaky, Logger: zl})
		Expect(err).NotTo(HaveOccurred())

		flaky.failSaves = true
		_, err = svc.Create(ctx, "u1", map[string]any{}, false)
		Expect(err).To(HaveOccurred())
		flaky.failSaves = false

		reconciler := service.NewReconciler(svc, 10*time.Millisecond, zl)
		reconciler.Start()
		defer reconciler.Stop(time.Second)

		Eventually(func() memory.Snapshot {
			snapshot, _ := flaky.Driver.Load(ctx)
			return snapshot
		}, time.Second, 10*time.Millisecond).Should(HaveKey("u1"))
	})

	It("restores the snapshot after an external overwrite", func() {
		dir := GinkgoT().TempDir()
		zl := logger.Nop()

		driver, err := file.NewDriver(dir, zl)
		Expect(err).NotTo(HaveOccurred())

		svc, err := service.New(ctx, service.Config{Store: driver, Logger: zl})
		Expect(err).NotTo(HaveOccurred())

		_, err = svc.Create(ctx, "u1", map[string]any{}, false)
		Expect(err).NotTo(HaveOccurred())

		// Long interval: only the file watch can trigger the reconcile.
		reconciler := service.NewReconciler(svc, time.Hour, zl)
		Expect(reconciler.WatchSnapshot(driver.Path())).To(Succeed())
		reconciler.Start()
		defer reconciler.Stop(time.Second)

		// An external process clobbers the canonical file.
		Expect(os.WriteFile(driver.Path(), []byte("{}"), 0o644)).To(Succeed())

		Eventually(func() memory.Snapshot {
			snapshot, _ := driver.Load(ctx)
			return snapshot
		}, 2*time.Second, 20*time.Millisecond).Should(HaveKey("u1"))
	})
})
