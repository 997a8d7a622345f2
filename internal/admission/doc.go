// Package admission выбирает стратегию выполнения run.
//
// Эвристика совещательная: оба исполнителя принимают любой порядок
// и отличаются только временем выполнения. Policy считает оценку
// сложности запроса (Scorer) и сравнивает её с порогом.
//
// Веса ключевых слов и порог живут только здесь и могут быть
// заменены из YAML-файла (LoadWeights).
package admission
