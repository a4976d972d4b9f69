package storage

const (
	insertExpense = `INSERT INTO expenses (date, description, category, amount) VALUES (?, ?, ?, ?)`

	selectExpenses = `SELECT id, date, description, category, amount FROM expenses`

	listExpenses = selectExpenses + ` ORDER BY id`

	// Matches the month in any year.
	listExpensesByMonth = selectExpenses + ` WHERE strftime('%m', date) = ? ORDER BY id`

	listExpensesByYearMonth = selectExpenses + ` WHERE strftime('%Y-%m', date) = ? ORDER BY id`

	getExpense = selectExpenses + ` WHERE id = ?`

	updateExpense = `UPDATE expenses SET date = ?, description = ?, category = ?, amount = ? WHERE id = ?`

	deleteExpense = `DELETE FROM expenses WHERE id = ?`

	totalsByCategory = `SELECT category, SUM(amount) FROM expenses GROUP BY category`
)
