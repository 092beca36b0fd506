package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dudu/headcut/internal/pipeline"
)

type faceJSON struct {
	Cutout     string `json:"cutout"`
	DebugImage string `json:"debugImage,omitempty"`
}

var processDebug bool

var processCmd = &cobra.Command{
	Use:   "process <image>",
	Short: "Cut every detected head out of an image as a transparent PNG",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(args[0])
	},
}

func init() {
	processCmd.Flags().BoolVarP(&processDebug, "debug", "d", false, "Attach an annotated JPEG to every face")
	rootCmd.AddCommand(processCmd)
}

func runProcess(path string) (err error) {
	p, err := newPipeline(processDebug)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := p.Close(); err == nil {
			err = cerr
		}
	}()

	results, err := p.ProcessFace(path)
	if err != nil {
		return err
	}

	out := make([]faceJSON, len(results))
	for i, r := range results {
		switch r := r.(type) {
		case pipeline.Cutout:
			out[i] = faceJSON{Cutout: r.Base64}
		case pipeline.AnnotatedCutout:
			out[i] = faceJSON{Cutout: r.Base64, DebugImage: r.DebugBase64}
			if err := writeOut(fmt.Sprintf("face_%d_debug.jpg", i), r.DebugJPEG); err != nil {
				return err
			}
		}
		if err := writeOut(fmt.Sprintf("face_%d.png", i), r.Image().PNG); err != nil {
			return err
		}
	}
	return printJSON(out)
}
