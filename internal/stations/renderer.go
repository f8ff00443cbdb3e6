package stations

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/rendis/conveyor/pkg/schema"
)

// StarterRenderer writes a minimal working skeleton per stack: the project
// manifest plus the files the validate station requires. Richer template
// sets plug in by replacing the Renderer on the scaffold station.
type StarterRenderer struct{}

var starterFiles = map[schema.StackType]map[string]string{
	schema.StackPythonFastapi: {
		"requirements.txt": "fastapi\nuvicorn\n",
		"main.py":          "from fastapi import FastAPI\n\napp = FastAPI()\n\n\n@app.get(\"/health\")\ndef health():\n    return {\"status\": \"ok\"}\n",
	},
	schema.StackJavaSpringboot: {
		"pom.xml": springPom,
	},
	schema.StackJavaQuarkus: {
		"pom.xml": quarkusPom,
	},
	schema.StackDotnetWebapi: {
		"Program.cs": "var builder = WebApplication.CreateBuilder(args);\nvar app = builder.Build();\napp.MapGet(\"/health\", () => new { status = \"ok\" });\napp.Run();\n",
	},
	schema.StackRustAPI: {
		"Cargo.toml":  "[package]\nname = \"app\"\nversion = \"0.1.0\"\nedition = \"2021\"\n",
		"src/main.rs": "fn main() {\n    println!(\"ok\");\n}\n",
	},
	schema.StackFrontendReact: {
		"package.json": npmPackage("react"),
	},
	schema.StackFrontendAngular: {
		"package.json": npmPackage("angular"),
		"angular.json": "{\n  \"version\": 1,\n  \"projects\": {}\n}\n",
	},
	schema.StackFrontendVue: {
		"package.json": npmPackage("vue"),
	},
	schema.StackElectronApp: {
		"package.json": npmPackage("electron"),
	},
}

func (StarterRenderer) Render(_ context.Context, wctx *schema.WorkflowContext) ([]schema.Artifact, error) {
	files, ok := starterFiles[wctx.Stack]
	if !ok {
		return nil, fmt.Errorf("no starter template for stack %s", wctx.Stack)
	}

	manifest, err := json.MarshalIndent(map[string]any{
		"name":    wctx.AppName,
		"stack":   string(wctx.Stack),
		"version": "0.1.0",
		"env":     wctx.EnvVars,
	}, "", "  ")
	if err != nil {
		return nil, err
	}

	all := map[string]string{ManifestName: string(manifest) + "\n"}
	for name, content := range files {
		all[name] = content
	}

	var artifacts []schema.Artifact
	for name, content := range all {
		path := filepath.Join(wctx.OutputPath, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return nil, err
		}
		artifacts = append(artifacts, schema.Artifact{
			ID:   uuid.New().String(),
			Name: name,
			Type: "file",
			Path: path,
		})
	}
	return artifacts, nil
}

func npmPackage(flavor string) string {
	return fmt.Sprintf("{\n  \"name\": \"app\",\n  \"version\": \"0.1.0\",\n  \"private\": true,\n  \"description\": \"%s application\",\n  \"scripts\": {\n    \"build\": \"echo build\",\n    \"test\": \"echo test\",\n    \"start\": \"echo start\"\n  }\n}\n", flavor)
}

const springPom = `<?xml version="1.0" encoding="UTF-8"?>
<project xmlns="http://maven.apache.org/POM/4.0.0">
  <modelVersion>4.0.0</modelVersion>
  <groupId>com.example</groupId>
  <artifactId>app</artifactId>
  <version>0.1.0</version>
  <parent>
    <groupId>org.springframework.boot</groupId>
    <artifactId>spring-boot-starter-parent</artifactId>
    <version>3.3.0</version>
  </parent>
  <dependencies>
    <dependency>
      <groupId>org.springframework.boot</groupId>
      <artifactId>spring-boot-starter-web</artifactId>
    </dependency>
  </dependencies>
</project>
`

const quarkusPom = `<?xml version="1.0" encoding="UTF-8"?>
<project xmlns="http://maven.apache.org/POM/4.0.0">
  <modelVersion>4.0.0</modelVersion>
  <groupId>com.example</groupId>
  <artifactId>app</artifactId>
  <version>0.1.0</version>
  <dependencies>
    <dependency>
      <groupId>io.quarkus</groupId>
      <artifactId>quarkus-rest</artifactId>
    </dependency>
  </dependencies>
</project>
`
