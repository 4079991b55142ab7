package main

import (
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/lumen-ml/lumen"
)

// DevicesHandler prints one row per enumerated adapter.
func DevicesHandler(cmd *cobra.Command, args []string) error {
	ctx, err := lumen.NewContext()
	if err != nil {
		return err
	}
	defer ctx.Release()

	var data [][]string
	for i, dev := range ctx.Devices() {
		info := dev.Info()
		fp64 := "no"
		if info.SupportsFloat64 {
			fp64 = "yes"
		}
		data = append(data, []string{strconv.Itoa(i), info.Name, info.Vendor, fp64})
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "NAME", "VENDOR", "FP64"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	return nil
}
