// Package scheduler запускает графы по расписанию.
//
// Расписание графа — свойство schedule его узла Start (cron, 5 полей
// или дескриптор @daily/@every). Sync сохраняет его при записи графа,
// Scheduler.Tick создаёт PENDING run для каждого расписания, время
// которого подошло, и отправляет run.requested runner'у.
//
// Повторный Tick для того же момента не создаёт второй run: ключ
// идемпотентности "{graph_id}_{next_due_unix}".
//
// Leader election — в cmd/nodeflow-scheduler (pg_try_advisory_lock):
// Tick вызывает только лидер.
package scheduler
