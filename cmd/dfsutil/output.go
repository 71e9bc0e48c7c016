package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dargueta/acornfs"
	"github.com/dargueta/acornfs/file_systems/dfs"
)

const separator = "----------------------------------------------------------------"

func printCatalogue(w io.Writer, directory *acornfs.Directory) {
	fmt.Fprintf(w, "Name   : %s\n", directory.Name)
	fmt.Fprintf(w, "Options: %d (%s)\n", directory.BootOption, directory.BootOption)
	fmt.Fprintf(w, "Cycle  : %02x\n", directory.CycleNumber)
	fmt.Fprintf(
		w,
		"Sectors: %d (%d free)\n",
		directory.TotalSectors,
		dfs.FreeSectors(directory),
	)
	fmt.Fprintln(w, separator)

	if len(directory.Files) > 0 {
		for i := range directory.Files {
			printFile(w, &directory.Files[i])
		}
		fmt.Fprintln(w, separator)
	}

	fmt.Fprintf(w, "%d files\n", len(directory.Files))
}

func printFile(w io.Writer, file *acornfs.File) {
	lockFlag := ""
	if file.Locked {
		lockFlag = "L"
	}

	line := fmt.Sprintf(
		"  %-16s 0x%08x 0x%08x %10d %10d %s",
		dfs.DisplayName(file),
		file.LoadAddress,
		file.ExecAddress,
		file.Length,
		file.StartSector,
		lockFlag,
	)
	fmt.Fprintln(w, strings.TrimRight(line, " "))
}

// catalogueRow is a catalogue entry as written by `list --format csv`.
type catalogueRow struct {
	Name        string `csv:"name"`
	Directory   string `csv:"directory"`
	LoadAddress string `csv:"load_address"`
	ExecAddress string `csv:"exec_address"`
	Length      uint32 `csv:"length"`
	StartSector uint32 `csv:"start_sector"`
	Locked      bool   `csv:"locked"`
}

func catalogueRows(directory *acornfs.Directory) []catalogueRow {
	rows := make([]catalogueRow, len(directory.Files))
	for i, file := range directory.Files {
		rows[i] = catalogueRow{
			Name:        file.Name,
			Directory:   string(rune(file.Directory)),
			LoadAddress: fmt.Sprintf("%08x", file.LoadAddress),
			ExecAddress: fmt.Sprintf("%08x", file.ExecAddress),
			Length:      file.Length,
			StartSector: file.StartSector,
			Locked:      file.Locked,
		}
	}
	return rows
}
