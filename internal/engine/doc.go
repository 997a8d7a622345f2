// Package engine разрешает зависимости задач.
//
// Включает:
//   - resolver.go — порядок выполнения (DFS по приоритету, поиск циклов)
//   - dag.go      — граф зависимых задач поверх разрешённого порядка
//   - template.go — рендеринг Go templates в конфигурации handler'ов
//
// Engine ничего не выполняет: он отвечает только за структуру
// запроса и порядок задач.
package engine
