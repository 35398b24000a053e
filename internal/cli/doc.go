// Package cli реализует инструмент командной строки Nodeflow.
//
// # Обзор
//
// Локальные команды выполняют и проверяют документ графа прямо из файла,
// без сервера: run, validate, types. Файловые узлы работают с OS
// файловой системой внутри --root (или NODEFLOW_ROOT).
//
// Удалённые команды работают через HTTP API: graph push/list/show/
// validate/run/delete, run-show, runs.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Nodeflow API. Инкапсулирует запросы, разбор ответов
// (DataResponse, ListResponse) и ошибок (*APIError).
//
//	client := cli.NewClient("http://localhost:8080")
//	graphs, err := client.ListGraphs()
//
// ## Output
//
// Форматирование вывода: таблицы (text/tabwriter) по умолчанию или JSON
// с флагом --json. Данные выводятся в stdout, сообщения в stderr:
//
//	nodeflow run copy.json --json | jq .nodes
//
// ## Commands
//
// Группы создаются фабричными функциями (NewGraphCmd и т.д.), принимающими
// clientFn и outputFn: Client и Output создаются лениво после разбора
// PersistentFlags. NewRootCmd собирает всё дерево.
package cli
