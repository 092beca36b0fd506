package main

import (
	"github.com/spf13/cobra"
)

type swapJSON struct {
	Composite    string  `json:"composite"`
	StrengthUsed float64 `json:"correctionStrengthUsed"`
}

var swapStrength float64

var swapCmd = &cobra.Command{
	Use:   "swap <source> <target>",
	Short: "Blend the first face of source onto the first face of target",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var strength *float64
		if cmd.Flags().Changed("strength") {
			strength = &swapStrength
		}
		return runSwap(args[0], args[1], strength)
	},
}

func init() {
	swapCmd.Flags().Float64VarP(&swapStrength, "strength", "s", 0, "Colour correction strength 0..0.7 (estimated when omitted)")
	rootCmd.AddCommand(swapCmd)
}

func runSwap(source, target string, strength *float64) (err error) {
	p, err := newPipeline(false)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := p.Close(); err == nil {
			err = cerr
		}
	}()

	result, err := p.FaceSwap(source, target, strength)
	if err != nil {
		return err
	}
	if err := writeOut("swap.png", result.Composite.PNG); err != nil {
		return err
	}
	return printJSON(swapJSON{Composite: result.Composite.Base64, StrengthUsed: result.StrengthUsed})
}
