package memory

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("DeepMerge", func() {
	It("overwrites scalars", func() {
		existing := map[string]any{"name": "Blake", "role": "PM"}
		updates := map[string]any{"role": "APM"}

		merged := DeepMerge(existing, updates)
		Expect(merged["name"]).To(Equal("Blake"))
		Expect(merged["role"]).To(Equal("APM"))
	})

	It("skips nil values so null never erases data", func() {
		existing := map[string]any{"name": "Blake"}
		updates := map[string]any{"name": nil}

		merged := DeepMerge(existing, updates)
		Expect(merged["name"]).To(Equal("Blake"))
	})

	It("leaves the document unchanged when every update field is null", func() {
		existing := map[string]any{
			"profile": map[string]any{"name": "Blake"},
			"tags":    []any{"a", "b"},
		}
		updates := map[string]any{"profile": nil, "tags": nil}

		merged := DeepMerge(existing, updates)
		Expect(merged).To(Equal(existing))
	})

	It("recurses into nested objects", func() {
		existing := map[string]any{
			"profile": map[string]any{
				"name": "Blake",
				"preferences": map[string]any{
					"tone": "direct",
				},
			},
		}
		updates := map[string]any{
			"profile": map[string]any{
				"preferences": map[string]any{
					"format": "bullets",
				},
			},
		}

		merged := DeepMerge(existing, updates)
		profile := merged["profile"].(map[string]any)
		prefs := profile["preferences"].(map[string]any)
		Expect(profile["name"]).To(Equal("Blake"))
		Expect(prefs["tone"]).To(Equal("direct"))
		Expect(prefs["format"]).To(Equal("bullets"))
	})

	It("appends only structurally new sequence items", func() {
		existing := map[string]any{"priorities": []any{"ship v2", "hire"}}
		updates := map[string]any{"priorities": []any{"hire", "plan offsite"}}

		merged := DeepMerge(existing, updates)
		Expect(merged["priorities"]).To(Equal([]any{"ship v2", "hire", "plan offsite"}))
	})

	It("compares sequence items structurally, not by identity", func() {
		existing := map[string]any{
			"tasks": []any{map[string]any{"title": "review", "status": "todo"}},
		}
		updates := map[string]any{
			"tasks": []any{
				map[string]any{"title": "review", "status": "todo"},
				map[string]any{"title": "review", "status": "done"},
			},
		}

		merged := DeepMerge(existing, updates)
		Expect(merged["tasks"]).To(HaveLen(2))
	})

	It("overwrites on type mismatch", func() {
		existing := map[string]any{"focus": "thread-1"}
		updates := map[string]any{"focus": []any{"thread-1", "thread-2"}}

		merged := DeepMerge(existing, updates)
		Expect(merged["focus"]).To(Equal([]any{"thread-1", "thread-2"}))
	})

	It("does not mutate its inputs", func() {
		existing := map[string]any{
			"profile": map[string]any{"name": "Blake"},
		}
		updates := map[string]any{
			"profile": map[string]any{"role": "PM"},
		}

		merged := DeepMerge(existing, updates)
		merged["profile"].(map[string]any)["name"] = "changed"

		Expect(existing["profile"].(map[string]any)["name"]).To(Equal("Blake"))
		Expect(updates["profile"].(map[string]any)).NotTo(HaveKey("name"))
	})
})

var _ = Describe("Record document round-trip", func() {
	It("converts a record to a map and back without loss", func() {
		record := &Record{
			UserID: "u1",
			Profile: Profile{
				Name: "Blake",
				Preferences: map[string]any{
					"tone": "direct",
				},
			},
			WorkingMemory: WorkingMemory{
				ActivePriorities: []string{"ship v2"},
			},
		}

		doc, err := record.AsMap()
		Expect(err).NotTo(HaveOccurred())

		back, err := RecordFromMap(doc)
		Expect(err).NotTo(HaveOccurred())
		Expect(back.UserID).To(Equal("u1"))
		Expect(back.Profile.Name).To(Equal("Blake"))
		Expect(back.WorkingMemory.ActivePriorities).To(Equal([]string{"ship v2"}))
	})

	It("rejects documents with mistyped fields", func() {
		doc := map[string]any{
			"user_id": "u1",
			"working_memory": map[string]any{
				"active_priorities": "not a list",
			},
		}

		_, err := RecordFromMap(doc)
		var verr *ValidationError
		Expect(errors.As(err, &verr)).To(BeTrue())
	})
})
