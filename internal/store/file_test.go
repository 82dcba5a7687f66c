package store_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/storepilot/internal/model"
	"basegraph.app/storepilot/internal/store"
)

var _ = Describe("FileStore", func() {
	describeCycleStore(func() store.CycleStore {
		s, err := store.NewFileStore(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
		return s
	})

	It("starts empty when a data file is corrupt", func() {
		dir := GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, "cycle-reports.json"), []byte("{not json"), 0o644)).To(Succeed())
		s, err := store.NewFileStore(dir)
		Expect(err).NotTo(HaveOccurred())

		reports, err := s.GetRecentReports(context.Background(), 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(reports).To(BeEmpty())

		Expect(s.SaveReport(context.Background(), model.CycleReport{CycleID: "c-1"})).To(Succeed())
		report, err := s.GetReport(context.Background(), "c-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(report.CycleID).To(Equal("c-1"))
	})

	It("leaves no temp files behind", func() {
		dir := GinkgoT().TempDir()
		s, err := store.NewFileStore(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.SaveJob(context.Background(), model.Job{JobID: "1"})).To(Succeed())

		entries, err := os.ReadDir(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Name()).To(Equal("jobs.json"))
	})
})
