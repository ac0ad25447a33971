// Package cobra wires this module's command-line surface: scan,
// describe, read, and verify-parity, each a thin adapter between a
// few pflag-bound options and the domain packages that do the real
// work.
package cobra

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Anthya1104/volrecon/internal/mdraid"
	"github.com/Anthya1104/volrecon/internal/parityutil"
	"github.com/Anthya1104/volrecon/internal/partition"
	"github.com/Anthya1104/volrecon/internal/raid"
)

var rootCmd = &cobra.Command{
	Use:   "volrecon",
	Short: "Read-only forensic reconstruction of logical block devices",
}

var scanCmd = &cobra.Command{
	Use:   "scan <image>",
	Short: "Identify a disk image's partition scheme and list its partitions",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

var describeCmd = &cobra.Command{
	Use:   "describe <image>",
	Short: "Describe an MD software RAID superblock found on a member image",
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribe,
}

var readCmd = &cobra.Command{
	Use:   "read <member-image>...",
	Short: "Assemble an MD array from its member images and emit a byte range to stdout",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRead,
}

var verifyParityCmd = &cobra.Command{
	Use:   "verify-parity <data-shard>...",
	Short: "Check that a fully present RAID4/5/6 stripe's parity is internally consistent",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runVerifyParity,
}

var (
	readOffset int64
	readLength int64

	parityShardPath string

	scanSectorSize int64
)

// InitCLI builds the command tree and binds every subcommand's flags.
func InitCLI() *cobra.Command {
	scanCmd.Flags().Int64Var(&scanSectorSize, "sector-size", partition.DefaultSectorSize, "disk sector size in bytes, for disks that don't use 512")

	readCmd.Flags().Int64Var(&readOffset, "offset", 0, "byte offset into the assembled array to start reading")
	readCmd.Flags().Int64Var(&readLength, "length", 0, "number of bytes to read (required)")

	verifyParityCmd.Flags().StringVar(&parityShardPath, "parity", "", "parity shard file (required)")

	rootCmd.AddCommand(scanCmd, describeCmd, readCmd, verifyParityCmd)
	return rootCmd
}

// ExecuteCmd runs the command tree against os.Args.
func ExecuteCmd() error {
	return InitCLI().Execute()
}

func runScan(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening %s: %w", args[0], err)
	}
	defer f.Close()

	size, err := fileSize(f)
	if err != nil {
		return err
	}

	scheme, err := partition.Identify(f, size, scanSectorSize)
	if err != nil {
		return fmt.Errorf("identifying partition scheme: %w", err)
	}

	logrus.Infof("identified %s scheme on %s", scheme.Kind, args[0])

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Offset", "Size", "Type"})
	for _, p := range scheme.Partitions {
		t.AppendRow(table.Row{p.Number, p.Offset, humanize.Bytes(uint64(p.Size)), p.Type})
	}
	t.Render()
	return nil
}

func runDescribe(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening %s: %w", args[0], err)
	}
	defer f.Close()

	size, err := fileSize(f)
	if err != nil {
		return err
	}

	sb, err := mdraid.Parse(f, size)
	if err != nil {
		return fmt.Errorf("describing %s: %w", args[0], err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendRow(table.Row{"UUID", sb.UUID})
	t.AppendRow(table.Row{"Level", sb.Level})
	t.AppendRow(table.Row{"Layout", int(sb.Layout)})
	t.AppendRow(table.Row{"Chunk size", humanize.Bytes(uint64(sb.ChunkSize))})
	t.AppendRow(table.Row{"Raid disks", sb.RaidDisks})
	t.AppendRow(table.Row{"This disk role", sb.ThisDiskRole})
	t.AppendRow(table.Row{"Events", sb.Events})
	t.Render()
	return nil
}

func runRead(cmd *cobra.Command, args []string) error {
	if readLength <= 0 {
		return fmt.Errorf("--length must be positive")
	}

	var members []mdraid.Member
	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()

		size, err := fileSize(f)
		if err != nil {
			return err
		}

		sb, err := mdraid.Parse(f, size)
		if err != nil {
			return fmt.Errorf("parsing md superblock on %s: %w", path, err)
		}

		members = append(members, mdraid.Member{Stream: f, Size: size, SB: sb})
		logrus.Debugf("%s: role %d, %s array", path, sb.ThisDiskRole, sb.Level)
	}

	cfg, err := mdraid.BuildConfiguration(members)
	if err != nil {
		return fmt.Errorf("assembling array: %w", err)
	}

	vd, err := raid.Open(cfg)
	if err != nil {
		return fmt.Errorf("opening virtual disk: %w", err)
	}

	buf := make([]byte, readLength)
	n, err := vd.ReadAt(buf, readOffset)
	if err != nil && err != io.EOF {
		return fmt.Errorf("reading assembled array: %w", err)
	}

	if _, err := os.Stdout.Write(buf[:n]); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

func runVerifyParity(cmd *cobra.Command, args []string) error {
	if parityShardPath == "" {
		return fmt.Errorf("--parity is required")
	}

	dataShards, err := readShards(args)
	if err != nil {
		return err
	}
	parityShards, err := readShards([]string{parityShardPath})
	if err != nil {
		return err
	}

	ok, err := parityutil.VerifyStripe(dataShards, parityShards)
	if err != nil {
		return fmt.Errorf("verifying stripe: %w", err)
	}

	if ok {
		logrus.Info("parity is consistent")
	} else {
		logrus.Warn("parity mismatch")
		return fmt.Errorf("parity mismatch across %d data shard(s)", len(dataShards))
	}
	return nil
}

func readShards(paths []string) ([][]byte, error) {
	out := make([][]byte, len(paths))
	for i, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading shard %s: %w", p, err)
		}
		out[i] = b
	}
	return out, nil
}

func fileSize(f *os.File) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat: %w", err)
	}
	return info.Size(), nil
}
