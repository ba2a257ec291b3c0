// Package config loads the tensorize configuration.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//  1. Environment variables (highest priority), including unset ones
//     seeded from a .env file in the working directory
//  2. The YAML file named by KRONOS_CONFIG, or kronos.yaml when present
//  3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern KRONOS_<SECTION>_<FIELD>:
//
//	KRONOS_LOGGING_LEVEL=debug
//	KRONOS_PIPELINE_WINDOW=14
//	KRONOS_PIPELINE_STRATIFY=dow
//	KRONOS_PIPELINE_SEASONALITY_COLUMNS=holiday,school_break
//	KRONOS_PATHS_INPUT=/data/long
//	KRONOS_TELEMETRY_STATUS_ADDR=:9090
//
// # Validation
//
// The merged configuration is validated with struct tags. Failures are
// returned as an invalid_config pipeline error listing every bad field.
package config
