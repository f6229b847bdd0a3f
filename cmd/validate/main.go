// Package main validates entity schema documents from the command line.
// Exit code 0 means every file passed, 1 means at least one failed.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"metaform/internal/schema"
	"metaform/internal/schema/expr"
	"metaform/internal/schema/version"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: validate <schema.json> [...]")
		os.Exit(2)
	}

	validator := schema.NewValidator()
	if rules, err := expr.NewRuleEvaluator(); err == nil {
		validator = schema.NewValidatorWithRules(rules)
	}

	failed := false
	for _, path := range os.Args[1:] {
		if !validateFile(validator, path) {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func validateFile(validator *schema.Validator, path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
		return false
	}

	entity, err := schema.ParseEntitySchema(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
		return false
	}

	check := version.CheckVersion(entity.DSLVersion)
	if !check.IsValid {
		fmt.Fprintf(os.Stderr, "%s: dslVersion: %s\n", path, check.Error)
		return false
	}
	if check.NeedsMigration {
		fmt.Printf("%s: version %s needs migration (migratable: %v)\n", path, entity.DSLVersion, check.CanMigrate)
	}

	result := validator.ValidateEntitySchema(entity)
	for _, warning := range result.Warnings {
		fmt.Printf("%s: warning: %s: %s\n", path, warning.Path, warning.Message)
	}
	if !result.Success {
		for _, e := range result.Errors {
			fmt.Fprintf(os.Stderr, "%s: error: %s: %s\n", path, e.Path, e.Message)
		}
		return false
	}

	out, _ := json.Marshal(map[string]any{"schema": entity.ID, "valid": true})
	fmt.Println(string(out))
	return true
}
