// Package pipeline собирает наборы задач для реестра.
//
// Builtin — встроенный пайплайн изменения кода:
//
//	analyzer (critical, 100)
//	  └─ planner (critical, 90)
//	       └─ implementer (critical, 80)
//	            └─ validator (optional, 70)
//	                 └─ reporter (optional, 10)
//
// Manifest — декларативный YAML-пайплайн, задачи которого
// исполняются шагами из пакета steps.
package pipeline
