package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"homesync-go/pkg/log"
)

// 单元格文本的最大长度，超出部分截断
const maxCellLength = 300

// Conn 是一个会话持有的数据库句柄，负责读取 schema 与执行 SQL。
type Conn struct {
	db         *gorm.DB
	sampleRows int
}

// NewConn 包装一个已打开的 gorm 连接。
func NewConn(db *gorm.DB, sampleRows int) *Conn {
	if sampleRows < 0 {
		sampleRows = 0
	}
	return &Conn{db: db, sampleRows: sampleRows}
}

// SchemaText 读取所有表的建表语句与少量样例行，拼接为提示词使用的文本。
// 每次调用都会访问数据库，不做缓存。
func (c *Conn) SchemaText(ctx context.Context) (string, error) {
	_, tableRows, err := c.query(ctx, "SHOW TABLES")
	if err != nil {
		return "", fmt.Errorf("failed to list tables: %w", err)
	}

	var sb strings.Builder
	for i, row := range tableRows {
		if len(row) == 0 {
			continue
		}
		table := row[0]

		_, ddlRows, err := c.query(ctx, "SHOW CREATE TABLE "+quoteIdent(table))
		if err != nil {
			return "", fmt.Errorf("failed to describe table %s: %w", table, err)
		}
		if len(ddlRows) == 0 || len(ddlRows[0]) < 2 {
			return "", fmt.Errorf("empty create statement for table %s", table)
		}

		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(strings.TrimSpace(ddlRows[0][1]))

		if c.sampleRows == 0 {
			continue
		}
		cols, samples, err := c.query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(table), c.sampleRows))
		if err != nil {
			// 样例行失败不影响建表语句
			log.Warnf("读取表 %s 的样例行失败: %v", table, err)
			continue
		}
		sb.WriteString("\n\n/*\n")
		sb.WriteString(fmt.Sprintf("%d rows from %s table:\n", c.sampleRows, table))
		sb.WriteString(formatTable(cols, samples))
		sb.WriteString("*/")
	}
	return sb.String(), nil
}

// Run 原样执行 SQL 并以文本返回结果；零行时返回空字符串。
func (c *Conn) Run(ctx context.Context, query string) (string, error) {
	cols, rows, err := c.query(ctx, query)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}
	return formatTable(cols, rows), nil
}

// Close 释放底层连接池。
func (c *Conn) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (c *Conn) query(ctx context.Context, query string) ([]string, [][]string, error) {
	rows, err := c.db.WithContext(ctx).Raw(query).Rows()
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]string
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		record := make([]string, len(cols))
		for i, v := range values {
			record[i] = truncate(formatValue(v), maxCellLength)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return cols, out, nil
}

func formatTable(cols []string, rows [][]string) string {
	var sb strings.Builder
	sb.WriteString(strings.Join(cols, "\t"))
	sb.WriteString("\n")
	for _, r := range rows {
		sb.WriteString(strings.Join(r, "\t"))
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	case time.Time:
		return val.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(val)
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
