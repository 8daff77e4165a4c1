package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dyuri/dstreader/pkg/dstreader"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var log = logrus.New()

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dstreader",
	Short: "Inspect Tajima DST embroidery files",
	Long: `dstreader is a tool for working with Tajima DST embroidery files.

It can display design metadata, compute stitch statistics and geometry
(bounds, segments), and validate file structure. Rendering and animation
are left to consumers of the library; this tool is inspection only.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			log.SetLevel(logrus.DebugLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug output")
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}

// info command
var infoCmd = &cobra.Command{
	Use:   "info <input.dst>",
	Short: "Display DST header information",
	Long: `Display the design metadata from a DST file header.

Only the 512-byte header block is read, so this is fast even for very
large designs.`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	infoCmd.Flags().Bool("json", false, "Output as JSON")
	infoCmd.Flags().Bool("brief", false, "Show only summary")
}

func runInfo(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")
	brief, _ := cmd.Flags().GetBool("brief")

	parser := dstreader.NewParser()
	info, err := parser.HeaderInfo(inputPath)
	if err != nil {
		return fmt.Errorf("read DST header: %w", err)
	}

	if info.Warning != "" {
		log.Warn(info.Warning)
	}

	if jsonOutput {
		return outputInfoJSON(info)
	}
	return outputInfoText(info, brief)
}

func outputInfoText(info dstreader.HeaderInfo, brief bool) error {
	h := info.Header

	if brief {
		fmt.Printf("%s: name=%q stitches=%d colors=%d size=%dx%d\n",
			info.FilePath, h.DesignName, h.StitchCount, h.ColorCount, h.Width(), h.Height())
		return nil
	}

	fmt.Printf("DST File: %s\n", info.FilePath)
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println()

	fmt.Println("Header:")
	fmt.Printf("  Design Name:      %s\n", h.DesignName)
	fmt.Printf("  Stitch Count:     %d (declared)\n", h.StitchCount)
	fmt.Printf("  Color Count:      %d\n", h.ColorCount)
	fmt.Printf("  Extents:          +X=%d -X=%d +Y=%d -Y=%d\n", h.PosX, h.NegX, h.PosY, h.NegY)
	fmt.Printf("  Dimensions:       %d x %d\n", h.Width(), h.Height())
	if h.AX != 0 || h.AY != 0 || h.MX != 0 || h.MY != 0 {
		fmt.Printf("  AX/AY/MX/MY:      %d/%d/%d/%d\n", h.AX, h.AY, h.MX, h.MY)
	}
	if h.PD != "" {
		fmt.Printf("  PD:               %s\n", h.PD)
	}
	fmt.Println()

	fmt.Printf("File Size:          %s (%d bytes)\n", formatBytes(info.FileSize), info.FileSize)
	return nil
}

func outputInfoJSON(info dstreader.HeaderInfo) error {
	h := info.Header
	out := map[string]interface{}{
		"file": info.FilePath,
		"header": map[string]interface{}{
			"designName":  h.DesignName,
			"stitchCount": h.StitchCount,
			"colorCount":  h.ColorCount,
			"posX":        h.PosX,
			"negX":        h.NegX,
			"posY":        h.PosY,
			"negY":        h.NegY,
			"ax":          h.AX,
			"ay":          h.AY,
			"mx":          h.MX,
			"my":          h.MY,
			"pd":          h.PD,
			"width":       h.Width(),
			"height":      h.Height(),
		},
		"fileSize": info.FileSize,
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// stats command
var statsCmd = &cobra.Command{
	Use:   "stats <input.dst>",
	Short: "Display stitch statistics and geometry",
	Long: `Decode all stitch records of a DST file and display statistics.

Shows actual stitch counts (which may disagree with the declared header
count), jump and color change counts, the bounding box of the stitch path,
and the number of contiguous stitch segments.`,
	Args: cobra.ExactArgs(1),
	RunE: runStats,
}

func init() {
	statsCmd.Flags().Bool("json", false, "Output as JSON")
	statsCmd.Flags().Bool("no-parallel", false, "Force sequential stitch decoding")
}

func runStats(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")
	noParallel, _ := cmd.Flags().GetBool("no-parallel")

	parser := dstreader.NewParser()
	parser.SetParallel(!noParallel)

	dst, err := parser.ParseFile(inputPath)
	if err != nil {
		return fmt.Errorf("parse DST file: %w", err)
	}

	if dst.HeaderWarning != "" {
		log.Warn(dst.HeaderWarning)
	}
	log.Debugf("decoded %d stitches from %s", dst.StitchCount(), inputPath)

	bounds := dst.GetBounds()
	segments := dst.StitchSegments()

	if jsonOutput {
		out := map[string]interface{}{
			"file": inputPath,
			"counts": map[string]int{
				"total":        dst.StitchCount(),
				"declared":     dst.Header.StitchCount,
				"regular":      dst.RegularStitchCount(),
				"jumps":        dst.JumpCount(),
				"colorChanges": dst.ColorChangeCount(),
				"segments":     len(segments),
			},
			"bounds": map[string]int{
				"minX": bounds.MinX,
				"minY": bounds.MinY,
				"maxX": bounds.MaxX,
				"maxY": bounds.MaxY,
			},
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	}

	fmt.Printf("DST File: %s\n", inputPath)
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println()

	fmt.Println("Stitches:")
	fmt.Printf("  Total:            %d\n", dst.StitchCount())
	fmt.Printf("  Declared:         %d\n", dst.Header.StitchCount)
	fmt.Printf("  Regular:          %d\n", dst.RegularStitchCount())
	fmt.Printf("  Jumps:            %d\n", dst.JumpCount())
	fmt.Printf("  Color Changes:    %d\n", dst.ColorChangeCount())
	fmt.Printf("  Segments:         %d\n", len(segments))
	fmt.Println()

	fmt.Println("Geometry:")
	fmt.Printf("  Bounds:           (%d, %d) - (%d, %d)\n", bounds.MinX, bounds.MinY, bounds.MaxX, bounds.MaxY)
	fmt.Printf("  Path Size:        %d x %d\n", bounds.MaxX-bounds.MinX, bounds.MaxY-bounds.MinY)
	fmt.Printf("  Header Size:      %d x %d\n", dst.Header.Width(), dst.Header.Height())

	return nil
}

// validate command
var validateCmd = &cobra.Command{
	Use:   "validate <input.dst>...",
	Short: "Validate DST file structure",
	Long: `Check whether files are structurally valid DST files.

Validation only inspects the header block; stitch data is never decoded.
Exits with a non-zero status if any file fails validation.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	parser := dstreader.NewParser()
	failed := 0

	for _, path := range args {
		if parser.ValidateFile(path) {
			fmt.Printf("%s: OK\n", filepath.Clean(path))
		} else {
			fmt.Printf("%s: INVALID\n", filepath.Clean(path))
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed validation", failed, len(args))
	}
	return nil
}

// version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dstreader %s (commit %s, built %s)\n", version, commit, date)
	},
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
