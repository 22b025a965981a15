package chat

import (
	"fmt"
	"strings"
	"time"
)

// ApologyMessage 向量化失败时返回给用户
const ApologyMessage = "ขออภัย ขณะนี้ระบบมีผู้ใช้งานจำนวนมาก กรุณาลองใหม่อีกครั้งในภายหลัง"

const (
	noModelDisclosure = "ห้ามเปิดเผยหรือพูดถึงชื่อโมเดลภาษา ผู้ให้บริการ หรือเทคโนโลยีเบื้องหลังที่ใช้ในการตอบคำถาม"

	responsiveInstruction = "หากคำถามไม่ชัดเจนหรือข้อมูลไม่เพียงพอต่อการตอบ ให้ถามคำถามกลับเพื่อขอรายละเอียดเพิ่มเติมก่อนตอบ"
	strictInstruction     = "ตอบโดยใช้เฉพาะข้อมูลจากความรู้ที่ให้ไว้ข้างต้นเท่านั้น หากไม่มีข้อมูลในเรื่องที่ถาม ให้แจ้งผู้ใช้ว่าไม่มีข้อมูลในเรื่องนี้"
	outsideInstruction    = "หากข้อมูลที่ให้ไว้ข้างต้นไม่เพียงพอ สามารถใช้ความรู้ทั่วไปของคุณเสริมในการตอบได้"
	webSearchInstruction  = "ใช้การค้นหาเว็บเพื่อหาข้อมูลที่เป็นปัจจุบันเมื่อจำเป็น"

	referenceHeader = "อ้างอิง:"
)

var thaiWeekdays = [...]string{"อาทิตย์", "จันทร์", "อังคาร", "พุธ", "พฤหัสบดี", "ศุกร์", "เสาร์"}

var thaiMonths = [...]string{
	"มกราคม", "กุมภาพันธ์", "มีนาคม", "เมษายน", "พฤษภาคม", "มิถุนายน",
	"กรกฎาคม", "สิงหาคม", "กันยายน", "ตุลาคม", "พฤศจิกายน", "ธันวาคม",
}

// ThaiDateLine 当地时间，佛历年 = 公历年 + 543
func ThaiDateLine(t time.Time) string {
	return fmt.Sprintf("วันนี้คือวัน%sที่ %d %s พ.ศ. %d เวลา %02d:%02d น.",
		thaiWeekdays[t.Weekday()], t.Day(), thaiMonths[t.Month()-1], t.Year()+543, t.Hour(), t.Minute())
}

func baseContextTurn(now time.Time) string {
	return ThaiDateLine(now) + "\n" + noModelDisclosure
}

// policyTurn 三个开关都未设置时返回空串
func policyTurn(allowOutside, responsive, webSearch bool) string {
	if !allowOutside && !responsive && !webSearch {
		return ""
	}
	var parts []string
	if responsive {
		parts = append(parts, responsiveInstruction)
	}
	if allowOutside {
		parts = append(parts, outsideInstruction)
	} else {
		parts = append(parts, strictInstruction)
	}
	if webSearch {
		parts = append(parts, webSearchInstruction)
	}
	return strings.Join(parts, "\n")
}
