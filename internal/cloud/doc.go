// Package cloud реализует сервисы стадий поверх AWS SDK v2.
//
//   - glue.go   — stages.JobService и stages.CrawlerService на AWS Glue
//   - stacks.go — stages.StackService на AWS CloudFormation
//
// Клиенты SDK принимаются через узкие интерфейсы GlueAPI и CloudFormationAPI,
// поэтому в тестах их можно подменить.
//
// Ожидаемые ответы сервисов ("crawler уже запущен", "нет изменений в стеке")
// переводятся здесь в значения; остальной код не разбирает ошибки AWS.
package cloud
