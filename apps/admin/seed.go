package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/cts/core/program"
)

// devSeed is loaded when no seed file is given.
var devSeed = program.Seed{
	Campuses: []program.Campus{{ID: 1, Name: "Main Campus"}},
	OldCampuses: []program.OldCampus{
		{Name: "Institute of Applied Sciences"},
		{Name: "City Polytechnic"},
	},
	Programs: []program.Program{
		{ID: 1, Code: "BSC-CS", Name: "Bachelor of Computer Science", CampusID: 1},
		{ID: 2, Code: "BSE", Name: "Bachelor of Software Engineering", CampusID: 1},
	},
	Courses: []program.Course{
		{ProgramID: 1, Code: "CSC1101", Name: "Introduction to Programming", Credit: 4},
		{ProgramID: 1, Code: "MTH1101", Name: "Discrete Mathematics", Credit: 4},
		{ProgramID: 1, Code: "CSC1201", Name: "Data Structures", Credit: 4},
		{ProgramID: 2, Code: "SWE1101", Name: "Software Requirements", Credit: 3},
		{ProgramID: 2, Code: "CSC1101", Name: "Introduction to Programming", Credit: 4},
	},
}

func (cli *commandLine) seedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load campuses, previous institutions, programs and courses",
		Long: "Load static data from a JSON file ({\"campuses\": [...], \"oldCampuses\": [...], \"programs\": [...], \"courses\": [...]})," +
			" or the development data set when no file is given. Existing records are kept.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seed := devSeed
			if file != "" {
				var err error
				if seed, err = readSeed(file); err != nil {
					return err
				}
			}
			if err := cli.progSvc.Seed(cmd.Context(), seed); err != nil {
				return errors.Wrap(err, "seeding")
			}
			fmt.Fprintf(cli.out, "seeded %d campuses, %d previous institutions, %d programs, %d courses\n",
				len(seed.Campuses), len(seed.OldCampuses), len(seed.Programs), len(seed.Courses))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON seed file")
	return cmd
}

func readSeed(path string) (program.Seed, error) {
	var seed program.Seed
	data, err := os.ReadFile(path)
	if err != nil {
		return seed, errors.Wrap(err, "reading seed file")
	}
	if err = json.Unmarshal(data, &seed); err != nil {
		return seed, errors.Wrapf(err, "decoding %s", path)
	}
	return seed, nil
}
