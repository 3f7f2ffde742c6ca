// Sync commands exchange revision records between store instances as files.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-health/careledger/pkg/revision"
)

var syncSince string

var syncExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write a revision record for a peer",
	Long: `Export writes every local change to a revision record file. With
--since, only changes the peer's knowledge vector does not cover are
included.

Example:
  chart sync export changes.json
  chart sync export changes.json --since peer-vector.json`,
	Args: cobra.ExactArgs(1),
	RunE: runSyncExport,
}

var syncImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Apply a peer's revision record",
	Long: `Import applies a revision record produced by a peer's export.
Applying the same record twice is harmless.

Example:
  chart sync import changes.json`,
	Args: cobra.ExactArgs(1),
	RunE: runSyncImport,
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print this store's process id and knowledge vector",
	Args:  cobra.NoArgs,
	RunE:  runSyncStatus,
}

func init() {
	syncExportCmd.Flags().StringVar(&syncSince, "since", "", "file holding the peer's knowledge vector")
	syncCmd.AddCommand(syncExportCmd)
	syncCmd.AddCommand(syncImportCmd)
	syncCmd.AddCommand(syncStatusCmd)
}

func runSyncExport(cmd *cobra.Command, args []string) error {
	st, err := attachStore()
	if err != nil {
		return err
	}
	defer st.Detach()

	since := revision.KnowledgeVector{}
	if syncSince != "" {
		data, err := os.ReadFile(syncSince)
		if err != nil {
			return fmt.Errorf("read peer vector: %w", err)
		}
		if err := json.Unmarshal(data, &since); err != nil {
			return fmt.Errorf("decode peer vector: %w", err)
		}
	}

	rec, err := st.ComputeRevision(since)
	if err != nil {
		return fmt.Errorf("compute revision: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode revision: %w", err)
	}
	if err := os.WriteFile(args[0], data, 0o644); err != nil {
		return fmt.Errorf("write revision: %w", err)
	}

	fmt.Printf("Exported %d changes to %s\n", len(rec.Changes), args[0])
	return nil
}

func runSyncImport(cmd *cobra.Command, args []string) error {
	st, err := attachStore()
	if err != nil {
		return err
	}
	defer st.Detach()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read revision: %w", err)
	}
	var rec revision.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("decode revision: %w", err)
	}

	if err := st.ApplyRevision(rec); err != nil {
		return fmt.Errorf("apply revision: %w", err)
	}
	fmt.Printf("Applied %d changes from %s\n", len(rec.Changes), args[0])
	return nil
}

func runSyncStatus(cmd *cobra.Command, args []string) error {
	st, err := attachStore()
	if err != nil {
		return err
	}
	defer st.Detach()

	vec := st.KnowledgeVector()
	if flagJSON {
		return printJSON(struct {
			Process string                   `json:"process"`
			Vector  revision.KnowledgeVector `json:"vector"`
		}{Process: st.ProcessID().String(), Vector: vec})
	}

	data, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("encode vector: %w", err)
	}
	fmt.Println("process:", st.ProcessID())
	fmt.Println("vector: ", string(data))
	return nil
}
