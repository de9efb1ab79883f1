package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelexport/fbx2glb/converter"
	"github.com/qmuntal/gltf"
)

func defaultOutput(input string) string {
	ext := filepath.Ext(input)
	return input[:len(input)-len(ext)] + ".glb"
}

// loadConfig reads -config if given, else the sidecar file next to the
// input. No config file is not an error.
func loadConfig(configPath, input string) (*converter.Config, error) {
	if configPath != "" {
		return converter.LoadConfig(configPath)
	}
	sidecar := input + ".fbx2glb.yaml"
	if _, err := os.Stat(sidecar); err != nil {
		return &converter.Config{}, nil
	}
	return converter.LoadConfig(sidecar)
}

func main() {
	noUVFlip := flag.Bool("nouvflip", false, "disable UV v-flip")
	texScale := flag.Float64("texscale", 1.0, "texture scale")
	texLimit := flag.Int("texlimit", 0, "texture resolution limit")
	configPath := flag.String("config", "", "config file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options] input.fbx [output.glb]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}
	input := flag.Arg(0)
	output := flag.Arg(1)
	if output == "" {
		output = defaultOutput(input)
	}
	if !strings.HasSuffix(strings.ToLower(output), ".glb") {
		log.Fatal("output must be a .glb file: ", output)
	}

	conf, err := loadConfig(*configPath, input)
	if err != nil {
		log.Fatal(err)
	}
	exportOpt := conf.ExportOption()
	if *noUVFlip {
		exportOpt.NoFlipV = true
	}
	gltfOpt := conf.GLTFOption()
	if *texScale != 1.0 {
		gltfOpt.TextureScale = float32(*texScale)
	}
	if *texLimit > 0 {
		gltfOpt.TextureResolutionLimit = *texLimit
	}

	scene, err := converter.NewFBXToExportConverter(exportOpt).ConvertFile(input)
	if err != nil {
		log.Fatal(err)
	}
	log.Print("materials: ", len(scene.Materials), " parts: ", len(scene.Parts))

	doc, err := converter.NewExportToGLTFConverter(gltfOpt).Convert(scene, filepath.Dir(input))
	if err != nil {
		log.Fatal(err)
	}
	if err := gltf.SaveBinary(doc, output); err != nil {
		log.Fatal(err)
	}
}
