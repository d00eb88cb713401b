// Package policy содержит чистые функции политики подписки:
// вычисление новой даты истечения при продлении на заданное число дней.
//
// Продление действующей подписки наращивает срок поверх текущей даты,
// продление просроченной или отсутствующей — отсчитывается от текущего момента.
// Смена роли на paid — побочный эффект вызывающей стороны, не политики.
package policy

import "time"

// Extend возвращает новую дату истечения подписки:
// max(now, current) + days суток. current == nil означает отсутствие
// оплаченного периода, тогда отсчет идет от now.
func Extend(now time.Time, current *time.Time, days int) time.Time {
	base := now
	if current != nil && current.After(now) {
		base = *current
	}
	return base.AddDate(0, 0, days)
}

// Expired сообщает, истекла ли подписка к моменту now.
// Отсутствующая дата считается истекшей: оплаченного периода нет.
func Expired(now time.Time, current *time.Time) bool {
	return current == nil || !current.After(now)
}
