// Package report содержит отчёт о выполнении графа.
//
// Report собирается движком через Builder и после Build не изменяется:
// каждый run создаёт новый отчёт, методы доступа возвращают копии.
package report
