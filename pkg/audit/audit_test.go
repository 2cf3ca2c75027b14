package audit_test

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/audit"
	"github.com/papercomputeco/recall/pkg/memory"
)

func readEntries(path string) []audit.Entry {
	f, err := os.Open(path)
	Expect(err).NotTo(HaveOccurred())
	defer f.Close()

	var entries []audit.Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		var entry audit.Entry
		Expect(json.Unmarshal(scanner.Bytes(), &entry)).To(Succeed())
		entries = append(entries, entry)
	}
	Expect(scanner.Err()).NotTo(HaveOccurred())

	return entries
}

var _ = Describe("Audit Logger", func() {
	var auditLogger *audit.Logger

	BeforeEach(func() {
		zl, _ := zap.NewDevelopment()

		var err error
		auditLogger, err = audit.NewLogger(GinkgoT().TempDir(), zl)
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires a directory", func() {
		zl, _ := zap.NewDevelopment()
		_, err := audit.NewLogger("", zl)
		Expect(err).To(HaveOccurred())
	})

	It("appends one JSON line per mutation", func() {
		before := &memory.Record{UserID: "u1", Profile: memory.Profile{Name: "Sam"}}
		after := &memory.Record{UserID: "u1", Profile: memory.Profile{Name: "Samantha"}}

		Expect(auditLogger.Record("patch", "u1", before, after)).To(Succeed())
		Expect(auditLogger.Record("patch", "u1", after, before)).To(Succeed())

		entries := readEntries(auditLogger.Path())
		Expect(entries).To(HaveLen(2))
		Expect(entries[0].Action).To(Equal("patch"))
		Expect(entries[0].UserID).To(Equal("u1"))
		Expect(entries[0].EntryID).NotTo(BeEmpty())
		Expect(entries[0].EntryID).NotTo(Equal(entries[1].EntryID))
	})

	It("renders a unified diff of the changed fields", func() {
		before := &memory.Record{UserID: "u1", Profile: memory.Profile{Name: "Sam"}}
		after := &memory.Record{UserID: "u1", Profile: memory.Profile{Name: "Samantha"}}

		Expect(auditLogger.Record("patch", "u1", before, after)).To(Succeed())

		entries := readEntries(auditLogger.Path())
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Diff).To(ContainSubstring("--- before"))
		Expect(entries[0].Diff).To(ContainSubstring("+++ after"))
		Expect(entries[0].Diff).To(ContainSubstring(`-    "name": "Sam"`))
		Expect(entries[0].Diff).To(ContainSubstring(`+    "name": "Samantha"`))
	})

	It("diffs creations against an empty document", func() {
		after := &memory.Record{UserID: "u1"}

		Expect(auditLogger.Record("create", "u1", nil, after)).To(Succeed())

		entries := readEntries(auditLogger.Path())
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Diff).To(ContainSubstring("-{}"))
		Expect(entries[0].Diff).To(ContainSubstring(`+  "user_id": "u1"`))
	})

	It("produces an empty diff when nothing changed", func() {
		record := &memory.Record{UserID: "u1"}

		Expect(auditLogger.Record("autosave", "u1", record, record)).To(Succeed())

		entries := readEntries(auditLogger.Path())
		Expect(entries).To(HaveLen(1))
		Expect(strings.TrimSpace(entries[0].Diff)).To(BeEmpty())
	})
})
