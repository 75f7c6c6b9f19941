// Package config загружает конфигурацию процесса и определения pipeline.
//
// Конфигурация процесса читается из переменных окружения с префиксом SKYLINE
// (envconfig). Определения pipeline лежат в YAML-файле (PIPELINES_FILE) и
// валидируются тегами validator плюс семантическими проверками стадий.
package config
