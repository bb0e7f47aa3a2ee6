// Package progress содержит доменную модель прогрессии пользователя Green Guardian.
//
// Пакет определяет:
//
//   - Состояние (State): UserProgress, одна запись на установку
//   - Справочники: LevelTable, Achievement, ChallengeDefinition
//   - Действия (Action): размеченное объединение, по типу на вид действия
//   - Трекер (Tracker): чистые операции над UserProgress
//   - Интерфейс репозитория: Repository с оптимистичной версией
//
// # Архитектурные принципы
//
//  1. Нулевые внешние зависимости - только стандартная библиотека Go
//  2. Состояние передаётся явно: загрузка в начале операции, сохранение в конце
//     выполняются слоем application, трекер только мутирует переданную запись
//  3. Последствия (начисление XP, повышение уровня, достижения, завершение
//     челленджей) ставятся в очередь и обрабатываются после основной мутации
//     в детерминированном порядке FIFO
//
// # Пример
//
//	tracker := progress.NewTracker(progress.DefaultConfig())
//	p := progress.NewUserProgress(id, now)
//	res, err := tracker.RecordAction(p, progress.ChoseSecondhand{CO2Kg: 2.5}, "", now)
//	// res.XPAwarded == 25, p.ItemsReused == 1
package progress
