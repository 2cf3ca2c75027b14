package sqlite_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/memory"
	"github.com/papercomputeco/recall/pkg/store/sqlite"
)

var _ = Describe("SQLite Store", func() {
	var (
		driver *sqlite.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		driver, err = sqlite.NewDriver(":memory:")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if driver != nil {
			driver.Close()
		}
	})

	Describe("NewDriver", func() {
		It("creates a file database on disk", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "recall.db")

			d, err := sqlite.NewDriver(dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer d.Close()

			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())
		})

		It("requires a path", func() {
			_, err := sqlite.NewDriver("")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Save and Load", func() {
		It("returns an empty snapshot before any save", func() {
			loaded, err := driver.Load(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(BeEmpty())
		})

		It("round-trips a snapshot", func() {
			snapshot := memory.Snapshot{
				"u1": {
					UserID:  "u1",
					Profile: memory.Profile{Name: "Sam", Role: "Engineer"},
					Events: []memory.Event{
						{ID: "meeting-20260101-standup", Type: memory.EventMeeting, Title: "standup"},
					},
				},
				"u2": {UserID: "u2"},
			}
			Expect(driver.Save(ctx, snapshot)).To(Succeed())

			loaded, err := driver.Load(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(HaveLen(2))
			Expect(loaded["u1"].Profile.Name).To(Equal("Sam"))
			Expect(loaded["u1"].Events).To(HaveLen(1))
		})

		It("replaces the full snapshot on save", func() {
			Expect(driver.Save(ctx, memory.Snapshot{"u1": {UserID: "u1"}})).To(Succeed())
			Expect(driver.Save(ctx, memory.Snapshot{"u2": {UserID: "u2"}})).To(Succeed())

			loaded, err := driver.Load(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).NotTo(HaveKey("u1"))
			Expect(loaded).To(HaveKey("u2"))
		})

		It("persists across driver reopens", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "recall.db")

			first, err := sqlite.NewDriver(dbPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Save(ctx, memory.Snapshot{"u1": {UserID: "u1"}})).To(Succeed())
			Expect(first.Close()).To(Succeed())

			second, err := sqlite.NewDriver(dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer second.Close()

			loaded, err := second.Load(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(HaveKey("u1"))
		})
	})
})
