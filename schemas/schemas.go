// Package schemas holds the embedded JSON Schema documents used to
// validate mlship configuration files.
package schemas

// PipelineSchemaJSON is the JSON Schema for mlship.yaml files.
const PipelineSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "mlship.schema.json",
  "title": "mlship pipeline configuration",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "name": {
      "type": "string",
      "pattern": "^[a-z0-9]([a-z0-9-]*[a-z0-9])?$",
      "description": "Project name (lowercase, digits, hyphens)"
    },
    "description": { "type": "string" },
    "project": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "python": { "type": "string" },
        "requirements": { "type": "string" }
      }
    },
    "paths": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "results": { "type": "string" },
        "model": { "type": "string" },
        "app": { "type": "string" }
      }
    },
    "config": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "engine": { "type": "string", "enum": ["shell", "mock"] },
        "timeout_seconds": { "type": "integer", "minimum": 1 },
        "stream_output": { "type": "boolean" },
        "fail_fast": { "type": "boolean" }
      }
    },
    "pipeline": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "string",
        "enum": ["install", "format", "train", "eval", "update-branch", "deploy"]
      }
    },
    "stages": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "install": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "upgrade_pip": { "type": "boolean" },
            "requirements": { "type": "string" },
            "packages": { "type": "array", "items": { "type": "string" } }
          }
        },
        "format": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "formatter": { "type": "string" },
            "targets": { "type": "array", "items": { "type": "string" } },
            "args": { "type": "array", "items": { "type": "string" } },
            "check_only": { "type": "boolean" }
          }
        },
        "train": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "script": { "type": "string" },
            "args": { "type": "array", "items": { "type": "string" } },
            "env": { "type": "object", "additionalProperties": { "type": "string" } },
            "timeout_seconds": { "type": "integer", "minimum": 1 },
            "data": { "type": "array", "items": { "type": "string" } },
            "model_file": { "type": "string" },
            "metrics_file": { "type": "string" },
            "plot_file": { "type": "string" }
          }
        },
        "eval": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "metrics_file": { "type": "string" },
            "plot_file": { "type": "string" },
            "report_file": { "type": "string" },
            "title": { "type": "string" },
            "comment": { "type": "boolean" },
            "check_links": { "type": "boolean" },
            "thresholds": {
              "type": "object",
              "minProperties": 1,
              "additionalProperties": { "type": "number" }
            }
          }
        },
        "update-branch": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "branch": { "type": "string" },
            "remote": { "type": "string" },
            "message": { "type": "string" }
          }
        },
        "deploy": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "space": { "type": "string", "pattern": "^[^/]+/[^/]+$" },
            "sdk": { "type": "string" },
            "revision": { "type": "string" },
            "message": { "type": "string" },
            "sync": {
              "type": "array",
              "items": {
                "type": "object",
                "required": ["from"],
                "additionalProperties": false,
                "properties": {
                  "from": { "type": "string" },
                  "to": { "type": "string" }
                }
              }
            },
            "archive": { "type": "string" },
            "workers": { "type": "integer", "minimum": 1 },
            "ensure_card": { "type": "boolean" }
          }
        }
      }
    },
    "hooks": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "before_run": { "$ref": "#/$defs/hookList" },
        "after_run": { "$ref": "#/$defs/hookList" },
        "stages": {
          "type": "object",
          "additionalProperties": {
            "type": "object",
            "additionalProperties": false,
            "properties": {
              "before": { "$ref": "#/$defs/hookList" },
              "after": { "$ref": "#/$defs/hookList" }
            }
          }
        }
      }
    }
  },
  "$defs": {
    "hookList": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["command"],
        "additionalProperties": false,
        "properties": {
          "command": { "type": "string", "minLength": 1 },
          "working_directory": { "type": "string" },
          "exit_codes": { "type": "array", "items": { "type": "integer" } },
          "error_on_fail": { "type": "boolean" }
        }
      }
    }
  }
}`
