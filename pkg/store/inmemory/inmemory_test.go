package inmemory

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/memory"
)

var _ = Describe("InMemory Store", func() {
	var (
		driver *Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		driver = NewDriver()
		ctx = context.Background()
	})

	It("returns an empty snapshot before any save", func() {
		loaded, err := driver.Load(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(BeEmpty())
	})

	It("round-trips a snapshot", func() {
		snapshot := memory.Snapshot{
			"u1": {UserID: "u1", Profile: memory.Profile{Name: "Sam"}},
		}
		Expect(driver.Save(ctx, snapshot)).To(Succeed())

		loaded, err := driver.Load(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(HaveKey("u1"))
		Expect(loaded["u1"].Profile.Name).To(Equal("Sam"))
	})

	It("isolates the committed snapshot from later caller mutation", func() {
		snapshot := memory.Snapshot{
			"u1": {UserID: "u1", Profile: memory.Profile{Name: "Sam"}},
		}
		Expect(driver.Save(ctx, snapshot)).To(Succeed())

		snapshot["u1"].Profile.Name = "changed"
		snapshot["u2"] = &memory.Record{UserID: "u2"}

		loaded, err := driver.Load(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(HaveLen(1))
		Expect(loaded["u1"].Profile.Name).To(Equal("Sam"))
	})

	It("keeps only the most recent save", func() {
		Expect(driver.Save(ctx, memory.Snapshot{"u1": {UserID: "u1"}})).To(Succeed())
		Expect(driver.Save(ctx, memory.Snapshot{"u2": {UserID: "u2"}})).To(Succeed())

		loaded, err := driver.Load(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).NotTo(HaveKey("u1"))
		Expect(loaded).To(HaveKey("u2"))
	})
})
