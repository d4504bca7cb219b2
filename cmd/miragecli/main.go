// Copyright (c) 2020 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command miragecli inspects renderer devices, shadow cascade
// schedules and mar resource archives from the terminal.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"golang.org/x/exp/mmap"

	"github.com/devblok/mirage/core"
	"github.com/devblok/mirage/core/cascade"
	"github.com/devblok/mirage/utility/mar"
)

func main() {
	app := cli.NewApp()
	app.Name = "miragecli"
	app.Usage = "inspect devices, cascade schedules and resource archives"
	app.Commands = []cli.Command{
		devicesCommand,
		cascadesCommand,
		packCommand,
		indexCommand,
		shadersCommand,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

var devicesCommand = cli.Command{
	Name:  "devices",
	Usage: "list Vulkan capable devices",
	Action: func(c *cli.Context) error {
		cfg := core.InstanceConfiguration{
			Extensions: []string{},
			Layers:     []string{},
		}

		instance, err := core.NewVulkanInstance(core.DefaultVulkanApplicationInfo, nil, cfg)
		if err != nil {
			return err
		}
		defer instance.Destroy()

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"ID", "Name", "Vendor", "Driver", "Memory"})
		for _, info := range instance.PhysicalDevicesInfo() {
			table.Append([]string{
				strconv.Itoa(info.ID),
				info.Name,
				strconv.Itoa(info.VendorID),
				strconv.Itoa(info.DriverVersion),
				strconv.FormatUint(uint64(info.Memory), 10),
			})
		}
		table.Render()
		return nil
	},
}

var cascadesCommand = cli.Command{
	Name:  "cascades",
	Usage: "print the shadow split schedule for given clip planes",
	Flags: []cli.Flag{
		cli.Float64Flag{Name: "near", Value: 0.5},
		cli.Float64Flag{Name: "far", Value: 48},
		cli.Float64Flag{Name: "lambda", Value: 0.95, Usage: "log/uniform split blend, [0.1, 1]"},
		cli.IntFlag{Name: "count", Value: cascade.Count, Usage: "number of cascades to preview"},
	},
	Action: func(c *cli.Context) error {
		near := float32(c.Float64("near"))
		far := float32(c.Float64("far"))
		lambda := float32(c.Float64("lambda"))
		if near <= 0 || far <= near {
			return fmt.Errorf("invalid clip planes %f, %f", near, far)
		}
		if c.Int("count") < 1 {
			return fmt.Errorf("invalid cascade count %d", c.Int("count"))
		}

		fractions := cascade.SplitsN(c.Int("count"), near, far, lambda)

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Cascade", "Fraction", "Split distance"})
		for i, fraction := range fractions {
			table.Append([]string{
				strconv.Itoa(i),
				fmt.Sprintf("%.4f", fraction),
				fmt.Sprintf("%.2f", near+fraction*(far-near)),
			})
		}
		table.Render()
		return nil
	},
}

var packCommand = cli.Command{
	Name:      "pack",
	Usage:     "bundle a directory into a mar archive",
	ArgsUsage: "<directory> <archive>",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "author", Value: "mirage"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return cli.NewExitError("expected a directory and an output file", 1)
		}
		dir, out := c.Args().Get(0), c.Args().Get(1)

		builder, err := mar.NewBuilder(mar.Header{
			Author:      c.String("author"),
			DateCreated: time.Now().Unix(),
			Version:     1,
		})
		if err != nil {
			return err
		}

		err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() {
				return err
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			log.WithField("file", rel).Info("Packing")
			return builder.Add(filepath.ToSlash(rel), f)
		})
		if err != nil {
			return err
		}

		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()

		written, err := builder.WriteTo(f)
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{"archive": out, "bytes": written}).Info("Archive written")
		return nil
	},
}

var indexCommand = cli.Command{
	Name:      "index",
	Usage:     "list the contents of a mar archive",
	ArgsUsage: "<archive>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.NewExitError("expected an archive path", 1)
		}

		r, err := mmap.Open(c.Args().First())
		if err != nil {
			return err
		}
		defer r.Close()

		ar, err := mar.Open(r)
		if err != nil {
			return err
		}

		header := ar.Header()
		fmt.Printf("author: %s, version: %d\n", header.Author, header.Version)

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Name", "Size", "Compressed", "Offset"})
		for _, entry := range ar.Index() {
			table.Append([]string{
				entry.Name,
				strconv.FormatInt(entry.Size, 10),
				strconv.FormatInt(entry.CompressedSize, 10),
				strconv.FormatInt(entry.Offset, 10),
			})
		}
		table.Render()
		return nil
	},
}

var shadersCommand = cli.Command{
	Name:      "shaders",
	Usage:     "list compiled shaders, or compile GLSL sources",
	ArgsUsage: "<directory>",
	Flags: []cli.Flag{
		cli.BoolFlag{Name: "compile", Usage: "compile .vert/.frag sources with glslangValidator"},
		cli.StringFlag{Name: "out", Value: "./res/shaders/bin", Usage: "output directory for compiled shaders"},
	},
	Action: func(c *cli.Context) error {
		if c.Bool("compile") {
			dir := c.Args().First()
			if dir == "" {
				dir = "./res/shaders/src"
			}
			return compileShaderTree(dir, c.String("out"))
		}

		dir := c.Args().First()
		if dir == "" {
			dir = "./res/shaders/bin"
		}

		files, types, err := core.ShaderFilesFromDirectory(dir)
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"File", "Type"})
		for idx, file := range files {
			typeName := "unknown"
			switch types[idx] {
			case core.VertexShaderType:
				typeName = "vertex"
			case core.FragmentShaderType:
				typeName = "fragment"
			}
			table.Append([]string{filepath.Base(file), typeName})
		}
		table.Render()
		return nil
	},
}

// compileShaderTree turns every .vert/.frag under src into a SPIR-V
// binary named <base>.<stage>.spv in out, the layout the renderer
// loads at startup.
func compileShaderTree(src, out string) error {
	if err := os.MkdirAll(out, 0755); err != nil {
		return err
	}
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		ext := filepath.Ext(path)
		if ext != ".vert" && ext != ".frag" {
			return nil
		}

		target := filepath.Join(out, filepath.Base(path)+".spv")
		cmd := exec.Command("glslangValidator", "-V", path, "-o", target)
		output, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("glslangValidator %s: %v: %s", path, err, output)
		}
		log.WithFields(log.Fields{"source": filepath.Base(path), "target": target}).Info("Compiled")
		return nil
	})
}
