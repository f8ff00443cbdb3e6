// Package stacks is the per-stack command catalog: for each supported
// technology stack, the shell commands used to build, test, launch, clean,
// and reinstall dependencies for a generated application.
package stacks

import (
	"github.com/rendis/conveyor/pkg/schema"
)

// Commands holds the lifecycle shell commands for one stack. Each command is
// run with the application directory as working directory.
type Commands struct {
	Build   string
	Test    string
	Launch  string
	Clean   string
	Install string
}

var catalog = map[schema.StackType]Commands{
	schema.StackPythonFastapi: {
		Build:   "pip install -r requirements.txt",
		Test:    "pytest",
		Launch:  "uvicorn main:app --host 0.0.0.0 --port 8000",
		Clean:   "pip install -r requirements.txt --force-reinstall",
		Install: "pip install -r requirements.txt",
	},
	schema.StackJavaSpringboot: {
		Build:   "./mvnw -q package -DskipTests",
		Test:    "./mvnw -q test",
		Launch:  "./mvnw spring-boot:run",
		Clean:   "./mvnw clean",
		Install: "./mvnw dependency:resolve",
	},
	schema.StackJavaQuarkus: {
		Build:   "./mvnw -q package -DskipTests",
		Test:    "./mvnw -q test",
		Launch:  "./mvnw quarkus:dev",
		Clean:   "./mvnw clean",
		Install: "./mvnw dependency:resolve",
	},
	schema.StackDotnetWebapi: {
		Build:   "dotnet build",
		Test:    "dotnet test",
		Launch:  "dotnet run",
		Clean:   "dotnet clean",
		Install: "dotnet restore",
	},
	schema.StackRustAPI: {
		Build:   "cargo build",
		Test:    "cargo test",
		Launch:  "cargo run",
		Clean:   "cargo clean",
		Install: "cargo fetch",
	},
	schema.StackFrontendReact: {
		Build:   "npm run build",
		Test:    "npm test -- --watchAll=false",
		Launch:  "npm start",
		Clean:   "rm -rf node_modules && npm install",
		Install: "npm install",
	},
	schema.StackFrontendAngular: {
		Build:   "npm run build",
		Test:    "npm test -- --watch=false",
		Launch:  "npm start",
		Clean:   "rm -rf node_modules && npm install",
		Install: "npm install",
	},
	schema.StackFrontendVue: {
		Build:   "npm run build",
		Test:    "npm run test:unit",
		Launch:  "npm run dev",
		Clean:   "rm -rf node_modules && npm install",
		Install: "npm install",
	},
	schema.StackElectronApp: {
		Build:   "npm run build",
		Test:    "npm test",
		Launch:  "npm start",
		Clean:   "rm -rf node_modules && npm install",
		Install: "npm install",
	},
}

// For returns the command set for a stack and whether the stack is known.
func For(stack schema.StackType) (Commands, bool) {
	c, ok := catalog[stack]
	return c, ok
}

// CleanCommand returns the clean command for a stack, or "" for unknown stacks.
func CleanCommand(stack schema.StackType) string {
	return catalog[stack].Clean
}

// InstallCommand returns the dependency-install command for a stack, or "".
func InstallCommand(stack schema.StackType) string {
	return catalog[stack].Install
}
